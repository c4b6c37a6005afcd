package reminders

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Failure is one item that could not be processed.
type Failure struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name,omitempty"`
	Error       string `json:"error"`
}

// Tally counts the outcome of a batch.
type Tally struct {
	Total    int       `json:"total"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

func (t *Tally) record(d Due, err error) {
	t.Total++
	if err != nil {
		t.Failed++
		t.Failures = append(t.Failures, Failure{PatientID: d.PatientID, PatientName: d.PatientName, Error: err.Error()})
		return
	}
	t.Sent++
}

// BatchRunner applies fn to each item, continuing past individual failures.
type BatchRunner interface {
	Run(ctx context.Context, items []Due, fn func(context.Context, Due) error) Tally
}

// SequentialRunner processes items one at a time, optionally paced by a
// rate limiter.
type SequentialRunner struct {
	Limiter *rate.Limiter
}

func (r SequentialRunner) Run(ctx context.Context, items []Due, fn func(context.Context, Due) error) Tally {
	var tally Tally
	for _, d := range items {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				tally.record(d, err)
				continue
			}
		}
		tally.record(d, fn(ctx, d))
	}
	return tally
}

// BoundedRunner processes up to Concurrency items at once.
type BoundedRunner struct {
	Concurrency int
	Limiter     *rate.Limiter
}

func (r BoundedRunner) Run(ctx context.Context, items []Due, fn func(context.Context, Due) error) Tally {
	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	var tally Tally
	for _, d := range items {
		g.Go(func() error {
			var err error
			if r.Limiter != nil {
				err = r.Limiter.Wait(gctx)
			}
			if err == nil {
				err = fn(gctx, d)
			}
			mu.Lock()
			tally.record(d, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return tally
}

// NewRunner picks a runner for the configured concurrency and per-second
// send rate. A non-positive rate disables pacing.
func NewRunner(concurrency int, perSecond float64) BatchRunner {
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	if concurrency <= 1 {
		return SequentialRunner{Limiter: limiter}
	}
	return BoundedRunner{Concurrency: concurrency, Limiter: limiter}
}
