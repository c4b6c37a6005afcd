package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/erdincayar/klinik-asistan-sub000/internal/api/router"
	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/audit"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/clinic"
	"github.com/erdincayar/klinik-asistan-sub000/internal/commands"
	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/conversation"
	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/inventory"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/internal/messaging"
	"github.com/erdincayar/klinik-asistan-sub000/internal/notify"
	"github.com/erdincayar/klinik-asistan-sub000/internal/observability/metrics"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/internal/reminders"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Options carries the external clients an App is assembled from. Redis is
// required; a nil Database selects the in-memory repositories.
type Options struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Redis    *redis.Client
	Database *Database
	Oracle   llm.Client
	Email    notify.EmailSender
	Chat     ChatSender
	Queue    messaging.Queue
	Metrics  *metrics.AssistantMetrics
	Clock    func() time.Time
}

// App holds every wired service. cmd/api and cmd/worker build one and pick
// the parts they serve.
type App struct {
	cfg    *appconfig.Config
	logger *logging.Logger

	Clinics      *clinic.CachedStore
	Now          calendar.NowFunc
	Patients     patients.Repository
	Resolver     *patients.Resolver
	Appointments *appointments.Service
	Finance      *finance.Service
	Inventory    *inventory.Service
	Reminders    *reminders.Service
	Commands     *commands.Router
	Classifier   *conversation.Classifier
	Agent        *conversation.Agent
	Processor    *conversation.Processor
	Notify       *notify.Service
	Audit        audit.Recorder
	AuditQuery   audit.Querier
	Outbox       events.Store
	Deduper      events.Deduper
	Queue        messaging.Queue
	Publisher    *messaging.Publisher
	Chat         ChatSender
	Metrics      *metrics.AssistantMetrics

	reminderRepo reminders.Repository
}

// NewApp assembles the services from opts.
func NewApp(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if opts.Redis == nil {
		return nil, errors.New("bootstrap: redis is required for clinic configuration")
	}
	if opts.Oracle == nil {
		return nil, errors.New("bootstrap: oracle is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := opts.Config
	chat := opts.Chat
	if chat == nil {
		chat = logChatSender{logger: logger}
	}
	email := opts.Email
	if email == nil {
		email = notify.NewStubEmailSender(logger)
	}
	queue := opts.Queue
	if queue == nil {
		queue = messaging.NewMemoryQueue(256)
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		Clinics: clinic.NewCachedStore(
			clinic.NewStore(opts.Redis).WithDefaults(cfg.ClinicTimezone, cfg.DefaultAppointmentMinutes), time.Minute),
		Queue:   queue,
		Chat:    chat,
		Metrics: opts.Metrics,
	}
	app.Now = clinic.NowFunc(app.Clinics, opts.Clock)
	app.buildStores(opts.Database)

	app.Resolver = patients.NewResolver(app.Patients, logger)
	app.Publisher = messaging.NewPublisher(queue)
	app.Notify = notify.NewService(email, chat, app.Clinics, logger)

	app.Reminders = reminders.NewService(reminders.Options{
		Repo:       app.reminderRepo,
		Treatments: app.Finance.Repository(),
		Patients:   app.Patients,
		Generator:  reminders.NewGenerator(opts.Oracle, logger),
		Sender: reminders.RoutingSender{
			Chats: app.Clinics,
			Chat:  chat,
			Email: email,
		},
		Runner:       reminders.NewRunner(cfg.ReminderSendConcurrency, cfg.ReminderSendRate),
		Now:          app.Now,
		CooldownDays: cfg.ReminderCooldownDays,
		Observer:     opts.Metrics,
		Logger:       logger,
	})

	app.Agent = conversation.NewAgent(opts.Oracle, app.Appointments, app.Finance, app.Patients, app.Audit, app.Now, logger)
	app.Commands = commands.NewRouter(commands.Deps{
		Appointments: app.Appointments,
		Finance:      app.Finance,
		Patients:     app.Patients,
		Reminders:    app.Reminders,
		Agent:        app.Agent,
		Preferences:  app.preferences,
		Now:          app.Now,
		Observer:     opts.Metrics,
		Logger:       logger,
	})
	app.Classifier = conversation.NewClassifier(opts.Oracle, logger,
		conversation.WithClassificationObserver(opts.Metrics))
	dispatcher := conversation.NewDispatcher(conversation.DispatcherDeps{
		Patients:     app.Resolver,
		Appointments: app.Appointments,
		Ledger:       app.Finance,
		Stock:        app.Inventory,
		Durations:    app.appointmentMinutes,
		Now:          app.Now,
		Logger:       logger,
	})
	app.Processor = conversation.NewProcessor(app.Commands, app.Classifier, dispatcher, app.Audit, app.Now, logger)
	return app, nil
}

func (a *App) buildStores(db *Database) {
	if db == nil {
		a.logger.Warn("DATABASE_URL not set; using in-memory stores")
		outbox := events.NewMemoryOutbox()
		a.Patients = patients.NewMemoryRepository()
		a.Appointments = appointments.NewService(appointments.NewMemoryRepository(), a.Metrics, a.logger)
		a.Finance = finance.NewService(finance.NewMemoryRepository(), a.logger)
		a.Inventory = inventory.NewService(inventory.NewMemoryRepository(outbox), a.logger)
		a.reminderRepo = reminders.NewMemoryRepository()
		recorder := audit.NewMemoryRecorder()
		a.Audit, a.AuditQuery = recorder, recorder
		a.Outbox = outbox
		a.Deduper = events.NewMemoryProcessedStore()
		return
	}
	a.Patients = patients.NewPostgresRepository(db.Pool)
	a.Appointments = appointments.NewService(appointments.NewPostgresRepository(db.Pool), a.Metrics, a.logger)
	a.Finance = finance.NewService(finance.NewPostgresRepository(db.Pool), a.logger)
	a.Inventory = inventory.NewService(inventory.NewPostgresRepository(db.Pool), a.logger)
	a.reminderRepo = reminders.NewPostgresRepository(db.Pool)
	auditService := audit.NewService(db.SQL)
	a.Audit, a.AuditQuery = auditService, auditService
	a.Outbox = events.NewOutboxStore(db.Pool)
	a.Deduper = events.NewProcessedStore(db.Pool)
}

func (a *App) appointmentMinutes(ctx context.Context, clinicID string) int {
	cfg, err := a.Clinics.Get(ctx, clinicID)
	if err != nil {
		a.logger.Warn("clinic config lookup failed", "clinic_id", clinicID, "error", err)
		return clinic.DefaultConfig(clinicID).AppointmentMinutes()
	}
	return cfg.AppointmentMinutes()
}

func (a *App) preferences(ctx context.Context, clinicID string) reminders.Preferences {
	cfg, err := a.Clinics.Get(ctx, clinicID)
	if err != nil || cfg == nil {
		cfg = clinic.DefaultConfig(clinicID)
	}
	return reminders.Preferences{ClinicName: cfg.Name, Tone: cfg.ReminderTone}
}

// AutoSendClinics lists clinics that opted in to scheduled reminders.
func (a *App) AutoSendClinics(ctx context.Context) ([]reminders.AutoSendClinic, error) {
	ids, err := a.Clinics.AutoSendClinicIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]reminders.AutoSendClinic, 0, len(ids))
	for _, id := range ids {
		out = append(out, reminders.AutoSendClinic{ClinicID: id, Prefs: a.preferences(ctx, id)})
	}
	return out, nil
}

// RouterConfig returns the HTTP surface. The Telegram webhook is mounted
// only when a webhook secret is configured.
func (a *App) RouterConfig(metricsHandler http.Handler) *router.Config {
	rc := &router.Config{
		Logger:       a.logger,
		Assistant:    conversation.NewHandler(a.Processor, a.Classifier, a.Now, a.logger),
		Appointments: appointments.NewHandler(a.Appointments, a.Resolver, a.Now, a.logger),
		Patients:     patients.NewHandler(a.Patients, a.logger),
		Finance:      finance.NewHandler(a.Finance, a.Resolver, a.Now, a.logger),
		Inventory:    inventory.NewHandler(a.Inventory, a.logger),
		Reminders: reminders.NewHandler(a.Reminders, func(r *http.Request, clinicID string) reminders.Preferences {
			return a.preferences(r.Context(), clinicID)
		}, a.logger),
		Clinic:             clinic.NewHandler(a.Clinics, a.logger),
		Audit:              audit.NewHandler(a.AuditQuery, a.logger),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    a.cfg.AdminJWTSecret,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimitRPS:       a.cfg.RateLimitRPS,
		RateLimitBurst:     a.cfg.RateLimitBurst,
	}
	if a.cfg.TelegramWebhookSecret != "" {
		rc.TelegramWebhook = messaging.NewWebhookHandler(messaging.WebhookDeps{
			Secret:    a.cfg.TelegramWebhookSecret,
			Publisher: a.Publisher,
			Chats:     a.Clinics,
			Deduper:   a.Deduper,
			Notices:   a.Chat,
			Observer:  a.Metrics,
			Logger:    a.logger,
		})
	} else {
		a.logger.Warn("TELEGRAM_WEBHOOK_SECRET not set; telegram webhook disabled")
	}
	return rc
}

// InboundWorker drains the inbound queue through the processor.
func (a *App) InboundWorker() *messaging.Worker {
	return messaging.NewWorker(a.Queue, a.Processor, a.Chat, a.Metrics, a.logger,
		messaging.WithWorkerCount(a.cfg.WorkerCount))
}

// ReminderWorker periodically sends due reminders for auto-send clinics.
func (a *App) ReminderWorker() *reminders.Worker {
	return reminders.NewWorker(a.Reminders, a.AutoSendClinics, a.cfg.ReminderSendInterval, a.logger)
}

// DailySummaryJob mails and posts the end of day summary.
func (a *App) DailySummaryJob() *notify.DailySummaryJob {
	return notify.NewDailySummaryJob(a.Notify, a.Clinics.ClinicIDs, a.Commands.DailySummary, a.Now, a.cfg.DailySummaryHour, a.logger)
}

// OutboxDeliverer hands pending outbox events to the notifier.
func (a *App) OutboxDeliverer() *events.Deliverer {
	return events.NewDeliverer(a.Outbox, a.Notify, a.logger)
}

// RunBackground runs the inbound worker pool, the reminder sweep, the daily
// summary job and the outbox deliverer until ctx is cancelled.
func (a *App) RunBackground(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	inbound := a.InboundWorker()
	inbound.Start(ctx)
	g.Go(func() error {
		inbound.Wait()
		return nil
	})
	g.Go(func() error {
		a.ReminderWorker().Start(ctx)
		return nil
	})
	g.Go(func() error {
		a.DailySummaryJob().Start(ctx)
		return nil
	})
	g.Go(func() error {
		a.OutboxDeliverer().Start(ctx)
		return nil
	})
	a.logger.Info("background jobs started", "workers", a.cfg.WorkerCount)
	return g.Wait()
}
