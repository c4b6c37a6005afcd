package calendar

import (
	"context"
	"time"
)

// NowFunc returns the current time in a clinic's time zone.
type NowFunc func(ctx context.Context, clinicID string) time.Time

// NowIn returns a NowFunc that reports the wall clock in loc for every clinic.
func NowIn(loc *time.Location) NowFunc {
	return func(context.Context, string) time.Time {
		return time.Now().In(loc)
	}
}

// FixedNow returns a NowFunc that always reports t.
func FixedNow(t time.Time) NowFunc {
	return func(context.Context, string) time.Time {
		return t
	}
}
