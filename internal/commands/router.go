// Package commands routes "/command arg..." chat text to report handlers.
//
// Route never fails: every handler error is logged and turned into a short
// Turkish notice, and a panic inside a handler is recovered the same way.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/internal/reminders"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const (
	genericFailure = "⚠️ Komut işlenirken beklenmeyen bir hata oluştu. Lütfen tekrar deneyin."
	unknownCommand = "❓ Bilinmeyen komut: /%s\nKomut listesi için /yardim yazın."
)

// Appointments is the calendar view the router reads and cancels through.
type Appointments interface {
	Day(ctx context.Context, clinicID string, day time.Time) ([]appointments.Appointment, error)
	Range(ctx context.Context, clinicID string, p calendar.Period) ([]appointments.Appointment, error)
	Upcoming(ctx context.Context, clinicID, patientID string, day time.Time) ([]appointments.Appointment, error)
	CancelByPatientName(ctx context.Context, clinicID, name string) (appointments.CancelOutcome, error)
}

// Finance supplies the money reports.
type Finance interface {
	Summarize(ctx context.Context, clinicID string, p calendar.Period, detailed bool) (*finance.Summary, error)
	CashPosition(ctx context.Context, clinicID string) (finance.Totals, error)
	Commissions(ctx context.Context, clinicID string, p calendar.Period) ([]finance.Commission, error)
	TopServices(ctx context.Context, clinicID string, p calendar.Period, limit int) ([]finance.Ranking, error)
	TopPatients(ctx context.Context, clinicID string, p calendar.Period, limit int) ([]finance.Ranking, error)
	PatientHistory(ctx context.Context, clinicID, patientID string, limit int) ([]finance.Treatment, error)
}

// PatientDirectory looks patients up. patients.Repository satisfies it.
type PatientDirectory interface {
	SearchByName(ctx context.Context, clinicID, fragment string, limit int) ([]patients.Patient, error)
	ListRecent(ctx context.Context, clinicID string, limit int) ([]patients.Patient, error)
	Count(ctx context.Context, clinicID string) (int, error)
}

// Reminders lists and sends due reminders.
type Reminders interface {
	Due(ctx context.Context, clinicID string) ([]reminders.Due, error)
	SendAll(ctx context.Context, clinicID string, prefs reminders.Preferences) (reminders.Tally, error)
}

// Agent answers an open question with tool access.
type Agent interface {
	Ask(ctx context.Context, clinicID, question string) string
}

// Observer records command outcomes.
type Observer interface {
	ObserveCommand(command, outcome string)
}

// PreferencesFunc supplies the reminder tone for a clinic.
type PreferencesFunc func(ctx context.Context, clinicID string) reminders.Preferences

// Deps wires the router. Agent, Reminders, Observer and Preferences are
// optional.
type Deps struct {
	Appointments Appointments
	Finance      Finance
	Patients     PatientDirectory
	Reminders    Reminders
	Agent        Agent
	Preferences  PreferencesFunc
	Now          calendar.NowFunc
	Observer     Observer
	Logger       *logging.Logger
}

// Result is what Route produced. IsCommand is false when text was not a
// slash command, in which case Text is empty and the caller should classify
// the original text instead.
type Result struct {
	IsCommand bool
	Command   string
	Text      string
	Success   bool
}

type request struct {
	clinicID string
	args     string
	now      time.Time
}

type handlerFunc func(ctx context.Context, req request) (string, error)

// Router dispatches slash commands.
type Router struct {
	deps     Deps
	logger   *logging.Logger
	handlers map[string]handlerFunc
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Now == nil {
		deps.Now = calendar.NowIn(calendar.Location(""))
	}
	r := &Router{deps: deps, logger: deps.Logger}
	r.handlers = map[string]handlerFunc{
		"randevu":       r.appointments,
		"gelir":         r.income,
		"gider":         r.expense,
		"rapor":         r.report,
		"kasa":          r.cash,
		"hasta":         r.patient,
		"hastalar":      r.patientList,
		"hatirlatmalar": r.dueReminders,
		"hatirlatma":    r.sendReminders,
		"top":           r.leaderboard,
		"prim":          r.commissions,
		"ozet":          r.dailySummary,
		"yardim":        r.help,
		"help":          r.help,
		"sor":           r.ask,
	}
	return r
}

// Parse splits "/name arg..." into a folded command name and the argument
// string joined by single spaces. A "@botname" suffix on the command is
// dropped. ok is false when text is not a command.
func Parse(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(text)
	name = strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return textnorm.Fold(name), strings.Join(fields[1:], " "), true
}

// Route runs the command in text for clinicID.
func (r *Router) Route(ctx context.Context, text, clinicID string) (res Result) {
	name, args, ok := Parse(text)
	if !ok {
		return Result{}
	}
	res = Result{IsCommand: true, Command: name}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command panicked", "command", name, "clinic_id", clinicID, "panic", fmt.Sprint(rec))
			r.observe(name, "panic")
			res.Text = genericFailure
			res.Success = false
		}
	}()

	handler, known := r.handlers[name]
	if !known {
		r.observe("unknown", "unknown")
		res.Text = fmt.Sprintf(unknownCommand, name)
		return res
	}

	req := request{clinicID: clinicID, args: args, now: r.deps.Now(ctx, clinicID)}
	out, err := handler(ctx, req)
	if err != nil {
		r.logger.Error("command failed", "command", name, "clinic_id", clinicID, "error", err)
		r.observe(name, "error")
		res.Text = fmt.Sprintf("⚠️ /%s komutu çalıştırılamadı. Lütfen daha sonra tekrar deneyin.", name)
		return res
	}
	r.observe(name, "ok")
	res.Text = out
	res.Success = true
	return res
}

// DailySummary renders the /ozet text for clinicID. The daily summary mailer
// uses it directly.
func (r *Router) DailySummary(ctx context.Context, clinicID string) (string, error) {
	return r.dailySummary(ctx, request{clinicID: clinicID, now: r.deps.Now(ctx, clinicID)})
}

func (r *Router) observe(command, outcome string) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveCommand(command, outcome)
	}
}
