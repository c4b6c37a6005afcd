package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	appmigrations "github.com/erdincayar/klinik-asistan-sub000/migrations"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	upErr   error
	version uint
	dirty   bool
	noneYet bool
}

func (f *fakeMigrator) Up() error   { f.calls = append(f.calls, "up"); return f.upErr }
func (f *fakeMigrator) Down() error { f.calls = append(f.calls, "down"); return nil }
func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}
func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return nil
}
func (f *fakeMigrator) Version() (uint, bool, error) {
	if f.noneYet {
		return 0, false, migrate.ErrNilVersion
	}
	return f.version, f.dirty, nil
}

func TestEmbeddedMigrationsEndAtEventsAudit(t *testing.T) {
	src, err := iofs.New(appmigrations.FS, ".")
	require.NoError(t, err)
	latest, err := latestVersion(src)
	require.NoError(t, err)
	assert.Equal(t, uint(5), latest)
}

func TestRunUpReportsVersion(t *testing.T) {
	var buf bytes.Buffer
	m := &fakeMigrator{version: 5}

	require.NoError(t, run(m, nil, 5, logging.NewWithWriter(&buf, "info")))
	assert.Equal(t, []string{"up"}, m.calls)
	assert.Contains(t, buf.String(), `"version":5`)
	assert.Contains(t, buf.String(), `"pending":false`)

	buf.Reset()
	m = &fakeMigrator{upErr: migrate.ErrNoChange, version: 5}
	require.NoError(t, run(m, []string{"up"}, 5, logging.NewWithWriter(&buf, "info")))
	assert.Contains(t, buf.String(), "schema already current")

	m = &fakeMigrator{upErr: errors.New("syntax error at or near")}
	assert.ErrorContains(t, run(m, nil, 5, logging.Discard()), "up: syntax error")
}

func TestRunDown(t *testing.T) {
	m := &fakeMigrator{version: 4}
	require.NoError(t, run(m, []string{"down"}, 5, logging.Discard()))
	assert.Equal(t, -1, m.steps)

	m = &fakeMigrator{version: 2}
	require.NoError(t, run(m, []string{"down", "3"}, 5, logging.Discard()))
	assert.Equal(t, -3, m.steps)

	m = &fakeMigrator{noneYet: true}
	require.NoError(t, run(m, []string{"down", "all"}, 5, logging.Discard()))
	assert.Equal(t, []string{"down"}, m.calls)

	assert.Error(t, run(&fakeMigrator{}, []string{"down", "0"}, 5, logging.Discard()))
	assert.Error(t, run(&fakeMigrator{}, []string{"down", "iki"}, 5, logging.Discard()))
}

func TestRunForceAndDirtySchema(t *testing.T) {
	var buf bytes.Buffer
	dirty := &fakeMigrator{version: 3, dirty: true}
	err := run(dirty, []string{"version"}, 5, logging.NewWithWriter(&buf, "info"))
	assert.ErrorContains(t, err, "migrate force 3")
	assert.Empty(t, dirty.calls)

	m := &fakeMigrator{version: 3}
	require.NoError(t, run(m, []string{"force", "3"}, 5, logging.Discard()))
	assert.Equal(t, 3, m.forced)

	assert.Error(t, run(&fakeMigrator{}, []string{"force"}, 5, logging.Discard()))
	assert.Error(t, run(&fakeMigrator{}, []string{"force", "9"}, 5, logging.Discard()))
	assert.ErrorContains(t, run(&fakeMigrator{}, []string{"sideways"}, 5, logging.Discard()), "unknown command")
}

func TestExecuteRequiresDatabaseURL(t *testing.T) {
	err := execute(&appconfig.Config{}, nil, logging.Discard())
	assert.ErrorContains(t, err, "DATABASE_URL")
}
