// Command migrate manages the clinic schema embedded in ./migrations.
//
//	migrate               apply every pending migration
//	migrate down [n|all]  roll back n migrations (default 1)
//	migrate version       report the applied and latest versions
//	migrate force <v>     mark v as applied after a failed run
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	appmigrations "github.com/erdincayar/klinik-asistan-sub000/migrations"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// migrator is the part of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := execute(cfg, os.Args[1:], logger); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func execute(cfg *appconfig.Config, args []string, logger *logging.Logger) error {
	databaseURL := strings.TrimSpace(cfg.DatabaseURL)
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	src, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	latest, err := latestVersion(src)
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return run(m, args, latest, logger)
}

func run(m migrator, args []string, latest uint, logger *logging.Logger) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already current")
		} else if err != nil {
			return fmt.Errorf("up: %w", err)
		}
	case "down":
		if len(args) > 1 && args[1] == "all" {
			if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("down all: %w", err)
			}
			break
		}
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("down: %q is not a positive step count", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil {
			return fmt.Errorf("down %d: %w", steps, err)
		}
	case "version":
	case "force":
		if len(args) < 2 {
			return errors.New("force: version is required")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil || version < 0 || uint(version) > latest {
			return fmt.Errorf("force: %q is not a version between 0 and %d", args[1], latest)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force %d: %w", version, err)
		}
	default:
		return fmt.Errorf("unknown command %q (want up, down, version or force)", command)
	}
	return report(m, latest, logger)
}

// report logs the applied version and fails on a dirty schema, which needs
// a manual fix and "force" before anything else runs.
func report(m migrator, latest uint, logger *logging.Logger) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied", "latest", latest)
		return nil
	}
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	logger.Info("schema version", "version", version, "latest", latest, "dirty", dirty, "pending", version < latest)
	if dirty {
		return fmt.Errorf("schema version %d is dirty, repair it and run: migrate force %d", version, version)
	}
	return nil
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, err
		}
		version = next
	}
}
