package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/api/router"
	"github.com/erdincayar/klinik-asistan-sub000/internal/audit"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/clinic"
	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/inventory"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type recordingChat struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (r *recordingChat) SendText(_ context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[string][]string{}
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		ClinicTimezone:            "Europe/Istanbul",
		DefaultAppointmentMinutes: 30,
		ReminderCooldownDays:      30,
		ReminderSendInterval:      time.Hour,
		ReminderSendRate:          10,
		ReminderSendConcurrency:   1,
		DailySummaryHour:          20,
		UseMemoryQueue:            true,
		WorkerCount:               1,
	}
}

func newTestApp(t *testing.T, cfg *appconfig.Config, oracleText string) (*App, *recordingChat) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	chat := &recordingChat{}
	app, err := NewApp(Options{
		Config: cfg,
		Logger: logging.Discard(),
		Redis:  client,
		Oracle: llm.StaticClient{Text: oracleText},
		Chat:   chat,
		Clock:  func() time.Time { return time.Date(2026, 1, 14, 9, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return app, chat
}

func TestNewAppRequiresDependencies(t *testing.T) {
	_, err := NewApp(Options{})
	require.Error(t, err)

	_, err = NewApp(Options{Config: testConfig()})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	_, err = NewApp(Options{Config: testConfig(), Redis: client})
	require.Error(t, err)
}

func TestAppProcessesFreeTextExpense(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), `{"type":"EXPENSE","description":"Kira","amount":25000,"category":"KIRA"}`)
	ctx := context.Background()

	reply := app.Processor.Handle(ctx, "c1", "Kira 25000 ödendi")

	assert.True(t, reply.Success)
	assert.Contains(t, reply.Text, "Gider kaydedildi")
	totals, err := app.Finance.CashPosition(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, money.FromLira(25000), totals.Expense)

	events, err := app.AuditQuery.Query(ctx, audit.Filter{ClinicID: "c1"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAppRoutesCommands(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), `{}`)

	reply := app.Processor.Handle(context.Background(), "c1", "/kasa")

	assert.Contains(t, reply.Text, "Kasa durumu")
}

func TestAppUsesClinicTimezone(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), `{}`)

	now := app.Now(context.Background(), "c1")

	assert.Equal(t, "Europe/Istanbul", now.Location().String())
	assert.Equal(t, 12, now.Hour())
}

func TestAppAutoSendClinics(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), `{}`)
	ctx := context.Background()
	require.NoError(t, app.Clinics.Set(ctx, &clinic.Config{ClinicID: "c1", Name: "Işık Klinik", ReminderAutoSend: true, ReminderTone: "resmi"}))
	require.NoError(t, app.Clinics.Set(ctx, &clinic.Config{ClinicID: "c2", Name: "Deniz"}))

	clinics, err := app.AutoSendClinics(ctx)

	require.NoError(t, err)
	require.Len(t, clinics, 1)
	assert.Equal(t, "c1", clinics[0].ClinicID)
	assert.Equal(t, "Işık Klinik", clinics[0].Prefs.ClinicName)
	assert.Equal(t, "resmi", clinics[0].Prefs.Tone)
}

func TestAppOutboxAlertsBoundChats(t *testing.T) {
	app, chat := newTestApp(t, testConfig(), `{}`)
	ctx := context.Background()
	require.NoError(t, app.Clinics.BindChat(ctx, "c1", "-1001"))
	require.NoError(t, app.Inventory.CreateProduct(ctx, &inventory.Product{ClinicID: "c1", Name: "Botoks", Unit: "şişe", CurrentStock: 5, MinStock: 3}))

	_, _, err := app.Inventory.MoveByName(ctx, "c1", "botoks", catalog.MovementOut, 3, "")
	require.NoError(t, err)
	app.OutboxDeliverer().Drain(ctx)

	require.Len(t, chat.sent["-1001"], 1)
	assert.Contains(t, chat.sent["-1001"][0], "Botoks")
}

func TestAppRouterConfigMountsWebhookWithSecret(t *testing.T) {
	cfg := testConfig()
	app, _ := newTestApp(t, cfg, `{}`)
	assert.Nil(t, app.RouterConfig(nil).TelegramWebhook)

	cfg.TelegramWebhookSecret = "s3cret"
	rc := app.RouterConfig(nil)
	require.NotNil(t, rc.TelegramWebhook)

	rr := httptest.NewRecorder()
	router.New(rc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAppWorkersConstruct(t *testing.T) {
	app, _ := newTestApp(t, testConfig(), `{}`)

	assert.NotNil(t, app.InboundWorker())
	assert.NotNil(t, app.ReminderWorker())
	assert.NotNil(t, app.DailySummaryJob())
}
