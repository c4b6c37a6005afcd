package reminders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/notify"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type fakeChats map[string]string

func (f fakeChats) ChatForPhone(_ context.Context, _ string, phone string) (string, bool, error) {
	id, ok := f[phone]
	return id, ok, nil
}

type fakeChatSender struct {
	sent map[string]string
	fail bool
}

func (f *fakeChatSender) SendText(_ context.Context, chatID, text string) error {
	if f.fail {
		return errors.New("telegram down")
	}
	f.sent[chatID] = text
	return nil
}

type fakeMailer struct {
	sent []notify.EmailMessage
}

func (f *fakeMailer) Send(_ context.Context, msg notify.EmailMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepository
	chat   *fakeChatSender
	mailer *fakeMailer
	ids    map[string]string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	people := patients.NewMemoryRepository()
	money := finance.NewMemoryRepository()
	repo := NewMemoryRepository()

	ids := map[string]string{}
	for _, p := range []*patients.Patient{
		{ClinicID: "c1", Name: "Ayşe Yılmaz", Phone: "05550000001"},
		{ClinicID: "c1", Name: "Mehmet Kaya", Email: "mehmet@example.com"},
		{ClinicID: "c1", Name: "Zeynep Ak"},
	} {
		require.NoError(t, people.Create(ctx, p))
		ids[p.Name] = p.ID
		require.NoError(t, money.CreateTreatment(ctx, &finance.Treatment{
			ClinicID: "c1", PatientID: p.ID, PatientName: p.Name, Name: "Botoks",
			Category: catalog.TreatmentBotox, Amount: 500000, Date: daysAgo(150),
		}))
	}
	require.NoError(t, repo.CreateRule(ctx, &Rule{ClinicID: "c1", Category: catalog.TreatmentBotox, IntervalDays: 120, Active: true}))

	chat := &fakeChatSender{sent: map[string]string{}}
	mailer := &fakeMailer{}
	svc := NewService(Options{
		Repo:       repo,
		Treatments: money,
		Patients:   people,
		Sender:     RoutingSender{Chats: fakeChats{"05550000001": "chat-42"}, Chat: chat, Email: mailer},
		Now:        calendar.FixedNow(refNow),
		Logger:     logging.Discard(),
	})
	return fixture{svc: svc, repo: repo, chat: chat, mailer: mailer, ids: ids}
}

func TestSendAllRoutesAndLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due, err := f.svc.Due(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, due, 3)

	tally, err := f.svc.SendAll(ctx, "c1", Preferences{ClinicName: "Işıl Klinik"})
	require.NoError(t, err)
	assert.Equal(t, 3, tally.Total)
	assert.Equal(t, 2, tally.Sent)
	assert.Equal(t, 1, tally.Failed)
	assert.Equal(t, f.ids["Zeynep Ak"], tally.Failures[0].PatientID)

	assert.Contains(t, f.chat.sent["chat-42"], "Ayşe Yılmaz")
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "mehmet@example.com", f.mailer.sent[0].To)
	assert.Equal(t, "Işıl Klinik - Randevu hatırlatması", f.mailer.sent[0].Subject)
	assert.Equal(t, notify.KindReminder, f.mailer.sent[0].Kind)
	assert.Equal(t, "c1", f.mailer.sent[0].ClinicID)
	require.NoError(t, f.mailer.sent[0].Validate())

	logs, err := f.repo.ListLogsSince(ctx, "c1", daysAgo(1000))
	require.NoError(t, err)
	require.Len(t, logs, 3)
	statuses := map[LogStatus]int{}
	for _, l := range logs {
		statuses[l.Status]++
	}
	assert.Equal(t, 2, statuses[LogSent])
	assert.Equal(t, 1, statuses[LogFailed])
}

func TestSendAllTwiceRemindsOnlyFailedPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendAll(ctx, "c1", Preferences{})
	require.NoError(t, err)

	due, err := f.svc.Due(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, f.ids["Zeynep Ak"], due[0].PatientID)
}

func TestSendAllWithoutSender(t *testing.T) {
	svc := NewService(Options{Repo: NewMemoryRepository(), Logger: logging.Discard()})
	_, err := svc.SendAll(context.Background(), "c1", Preferences{})
	assert.Error(t, err)
}

func TestSaveRuleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.SaveRule(ctx, &Rule{ClinicID: "c1", Category: "LAZER", IntervalDays: 30})
	assert.Error(t, err)
	err = f.svc.SaveRule(ctx, &Rule{ClinicID: "c1", Category: catalog.TreatmentDolgu, IntervalDays: 0})
	assert.Error(t, err)

	rule := &Rule{ClinicID: "c1", Category: catalog.TreatmentDolgu, IntervalDays: 180, Active: true}
	require.NoError(t, f.svc.SaveRule(ctx, rule))
	rule.Active = false
	require.NoError(t, f.svc.SaveRule(ctx, rule))

	err = f.svc.SaveRule(ctx, &Rule{ID: "missing", ClinicID: "c1", Category: catalog.TreatmentDolgu, IntervalDays: 10})
	assert.ErrorIs(t, err, ErrRuleNotFound)

	rules, err := f.svc.Rules(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.False(t, rules[1].Active)
}

func TestWorkerProcessesAutoSendClinics(t *testing.T) {
	f := newFixture(t)
	worker := NewWorker(f.svc, func(context.Context) ([]AutoSendClinic, error) {
		return []AutoSendClinic{{ClinicID: "c1"}, {ClinicID: "empty"}}, nil
	}, 0, logging.Discard())

	tally, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tally.Sent)
	assert.Equal(t, 1, tally.Failed)
}
