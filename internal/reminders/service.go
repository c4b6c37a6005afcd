package reminders

import (
	"context"
	"fmt"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// TreatmentSource lists a clinic's treatments of one category.
type TreatmentSource interface {
	ListTreatmentsByCategory(ctx context.Context, clinicID string, category catalog.TreatmentCategory) ([]finance.Treatment, error)
}

// PatientDirectory loads patient contact details.
type PatientDirectory interface {
	Get(ctx context.Context, clinicID, id string) (*patients.Patient, error)
}

// DeliveryObserver records reminder delivery outcomes.
type DeliveryObserver interface {
	ObserveReminder(channel, status string)
}

// Options wires a Service. Repo, Treatments and Patients are required.
type Options struct {
	Repo         Repository
	Treatments   TreatmentSource
	Patients     PatientDirectory
	Generator    *Generator
	Sender       Sender
	Runner       BatchRunner
	Now          calendar.NowFunc
	CooldownDays int
	Observer     DeliveryObserver
	Logger       *logging.Logger
}

// Service computes due reminders and sends them.
type Service struct {
	repo       Repository
	treatments TreatmentSource
	patients   PatientDirectory
	generator  *Generator
	sender     Sender
	runner     BatchRunner
	now        calendar.NowFunc
	cooldown   int
	observer   DeliveryObserver
	logger     *logging.Logger
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Runner == nil {
		opts.Runner = SequentialRunner{}
	}
	if opts.Now == nil {
		opts.Now = calendar.NowIn(calendar.Location(""))
	}
	if opts.CooldownDays <= 0 {
		opts.CooldownDays = DefaultCooldownDays
	}
	if opts.Generator == nil {
		opts.Generator = NewGenerator(nil, opts.Logger)
	}
	return &Service{
		repo:       opts.Repo,
		treatments: opts.Treatments,
		patients:   opts.Patients,
		generator:  opts.Generator,
		sender:     opts.Sender,
		runner:     opts.Runner,
		now:        opts.Now,
		cooldown:   opts.CooldownDays,
		observer:   opts.Observer,
		logger:     opts.Logger,
	}
}

// Rules returns every rule for the clinic.
func (s *Service) Rules(ctx context.Context, clinicID string) ([]Rule, error) {
	return s.repo.ListRules(ctx, clinicID)
}

// SaveRule creates r, or updates it when r.ID is set.
func (s *Service) SaveRule(ctx context.Context, r *Rule) error {
	if r.Category == "" || !r.Category.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid treatment category %q", r.Category))
	}
	if r.IntervalDays <= 0 {
		return apperr.Validation("interval_days must be positive")
	}
	r.MessageTemplate = strings.TrimSpace(r.MessageTemplate)
	if r.ID == "" {
		return s.repo.CreateRule(ctx, r)
	}
	return s.repo.UpdateRule(ctx, r)
}

// Due computes the patients currently due for a reminder.
func (s *Service) Due(ctx context.Context, clinicID string) ([]Due, error) {
	due, _, err := s.due(ctx, clinicID)
	return due, err
}

func (s *Service) due(ctx context.Context, clinicID string) ([]Due, map[string]Rule, error) {
	now := s.now(ctx, clinicID)
	rules, err := s.repo.ListRules(ctx, clinicID)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]Rule, len(rules))
	treatments := map[catalog.TreatmentCategory][]finance.Treatment{}
	for _, r := range rules {
		byID[r.ID] = r
		if !r.Active {
			continue
		}
		if _, ok := treatments[r.Category]; ok {
			continue
		}
		list, err := s.treatments.ListTreatmentsByCategory(ctx, clinicID, r.Category)
		if err != nil {
			return nil, nil, err
		}
		treatments[r.Category] = list
	}

	logs, err := s.repo.ListLogsSince(ctx, clinicID, now.AddDate(0, 0, -s.cooldown))
	if err != nil {
		return nil, nil, err
	}
	byPatient := map[string][]Log{}
	for _, l := range logs {
		byPatient[l.PatientID] = append(byPatient[l.PatientID], l)
	}

	due := FindDuePatients(DueInput{
		ClinicID:     clinicID,
		Rules:        rules,
		Treatments:   treatments,
		RecentLogs:   byPatient,
		Now:          now,
		CooldownDays: s.cooldown,
	})
	return due, byID, nil
}

// SendAll delivers a reminder to every due patient. Individual failures are
// logged and tallied; the batch always runs to the end.
func (s *Service) SendAll(ctx context.Context, clinicID string, prefs Preferences) (Tally, error) {
	if s.sender == nil {
		return Tally{}, apperr.Validation("no reminder delivery channel configured")
	}
	due, rules, err := s.due(ctx, clinicID)
	if err != nil {
		return Tally{}, err
	}

	// A patient matched by several rules is reminded once per batch.
	seen := map[string]bool{}
	unique := due[:0:0]
	for _, d := range due {
		if seen[d.PatientID] {
			continue
		}
		seen[d.PatientID] = true
		unique = append(unique, d)
	}

	tally := s.runner.Run(ctx, unique, func(ctx context.Context, d Due) error {
		return s.sendOne(ctx, clinicID, d, rules[d.RuleID], prefs)
	})
	s.logger.Info("reminder batch finished", "clinic_id", clinicID,
		"total", tally.Total, "sent", tally.Sent, "failed", tally.Failed)
	return tally, nil
}

func (s *Service) sendOne(ctx context.Context, clinicID string, d Due, rule Rule, prefs Preferences) error {
	p, err := s.patients.Get(ctx, clinicID, d.PatientID)
	if err != nil {
		return fmt.Errorf("reminders: load patient: %w", err)
	}
	body := s.generator.Generate(ctx, d, rule, prefs)
	subject := "Randevu hatırlatması"
	if prefs.ClinicName != "" {
		subject = prefs.ClinicName + " - " + subject
	}

	channel, sendErr := s.sender.Deliver(ctx, clinicID, *p, subject, body)
	status := LogSent
	if sendErr != nil {
		status = LogFailed
	}
	if s.observer != nil {
		s.observer.ObserveReminder(string(channel), string(status))
	}

	entry := &Log{
		ClinicID:       clinicID,
		PatientID:      d.PatientID,
		RuleID:         d.RuleID,
		MessageContent: body,
		Channel:        channel,
		Status:         status,
	}
	if err := s.repo.CreateLog(ctx, entry); err != nil {
		s.logger.Error("failed to write reminder log", "clinic_id", clinicID, "patient_id", d.PatientID, "error", err)
		if sendErr == nil {
			return err
		}
	}
	return sendErr
}
