package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// AutoSendClinic is a clinic that opted in to scheduled reminder sending.
type AutoSendClinic struct {
	ClinicID string
	Prefs    Preferences
}

// ClinicSource lists clinics with auto-send enabled.
type ClinicSource func(ctx context.Context) ([]AutoSendClinic, error)

// Worker periodically sends due reminders for auto-send clinics.
type Worker struct {
	service  *Service
	clinics  ClinicSource
	interval time.Duration
	logger   *logging.Logger
}

// NewWorker creates a reminder worker.
func NewWorker(service *Service, clinics ClinicSource, interval time.Duration, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Worker{service: service, clinics: clinics, interval: interval, logger: logger}
}

// Start runs one sweep immediately and then every interval until ctx ends.
func (w *Worker) Start(ctx context.Context) {
	if w.service == nil || w.clinics == nil {
		return
	}
	if _, err := w.ProcessDue(ctx); err != nil {
		w.logger.Error("reminder worker: sweep failed", "error", err)
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessDue(ctx); err != nil {
				w.logger.Error("reminder worker: sweep failed", "error", err)
			}
		}
	}
}

// ProcessDue sends reminders for every auto-send clinic and returns the
// combined tally. One clinic failing does not stop the others.
func (w *Worker) ProcessDue(ctx context.Context) (Tally, error) {
	clinics, err := w.clinics(ctx)
	if err != nil {
		return Tally{}, fmt.Errorf("reminder worker: list clinics: %w", err)
	}
	var total Tally
	for _, c := range clinics {
		tally, err := w.service.SendAll(ctx, c.ClinicID, c.Prefs)
		if err != nil {
			w.logger.Error("reminder worker: clinic batch failed", "clinic_id", c.ClinicID, "error", err)
			continue
		}
		total.Total += tally.Total
		total.Sent += tally.Sent
		total.Failed += tally.Failed
		total.Failures = append(total.Failures, tally.Failures...)
	}
	if total.Total > 0 {
		w.logger.Info("reminder worker: sweep finished", "clinics", len(clinics), "sent", total.Sent, "failed", total.Failed)
	}
	return total, nil
}
