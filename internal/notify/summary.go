package notify

import (
	"context"
	"sync"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// SummaryFunc renders the daily summary text for a clinic.
type SummaryFunc func(ctx context.Context, clinicID string) (string, error)

// ClinicLister lists every known clinic id.
type ClinicLister func(ctx context.Context) ([]string, error)

// DailySummaryJob sends each opted-in clinic its summary once per local day,
// at or after the configured hour.
type DailySummaryJob struct {
	service  *Service
	clinics  ClinicLister
	summary  SummaryFunc
	now      calendar.NowFunc
	hour     int
	interval time.Duration
	logger   *logging.Logger

	mu   sync.Mutex
	sent map[string]string
}

func NewDailySummaryJob(service *Service, clinics ClinicLister, summary SummaryFunc, now calendar.NowFunc, hour int, logger *logging.Logger) *DailySummaryJob {
	if logger == nil {
		logger = logging.Default()
	}
	if hour < 0 || hour > 23 {
		hour = 20
	}
	return &DailySummaryJob{
		service:  service,
		clinics:  clinics,
		summary:  summary,
		now:      now,
		hour:     hour,
		interval: 5 * time.Minute,
		logger:   logger,
		sent:     make(map[string]string),
	}
}

// Start checks for due summaries until ctx is cancelled.
func (j *DailySummaryJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		j.RunDue(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunDue sends every summary that is due now and returns how many went out.
func (j *DailySummaryJob) RunDue(ctx context.Context) int {
	ids, err := j.clinics(ctx)
	if err != nil {
		j.logger.Error("daily summary: list clinics failed", "error", err)
		return 0
	}
	sent := 0
	for _, clinicID := range ids {
		cfg, err := j.service.config(ctx, clinicID)
		if err != nil || !cfg.DailySummary {
			continue
		}
		now := j.now(ctx, clinicID)
		day := calendar.ISODate(now)
		if now.Hour() < j.hour || j.alreadySent(clinicID, day) {
			continue
		}
		text, err := j.summary(ctx, clinicID)
		if err != nil {
			j.logger.Error("daily summary: render failed", "clinic_id", clinicID, "error", err)
			continue
		}
		if err := j.service.SendDailySummary(ctx, clinicID, now, text); err != nil {
			j.logger.Error("daily summary: send failed", "clinic_id", clinicID, "error", err)
			continue
		}
		j.markSent(clinicID, day)
		sent++
	}
	return sent
}

func (j *DailySummaryJob) alreadySent(clinicID, day string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sent[clinicID] == day
}

func (j *DailySummaryJob) markSent(clinicID, day string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sent[clinicID] = day
}
