package appointments

import (
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd calendar.Clock) bool {
	return aStart < bEnd && aEnd > bStart
}

// ScheduleFor returns the active schedule for day's weekday.
func ScheduleFor(schedules []Schedule, day time.Time) (Schedule, bool) {
	for _, s := range schedules {
		if s.Weekday == day.Weekday() && s.Active {
			return s, true
		}
	}
	return Schedule{}, false
}

// ComputeSlots builds the slot grid for day and marks every slot that an
// occupying appointment on that day overlaps. Only whole slots that end
// by the schedule's closing time are produced.
func ComputeSlots(schedules []Schedule, day time.Time, existing []Appointment) []Slot {
	schedule, ok := ScheduleFor(schedules, day)
	if !ok || schedule.SlotMinutes <= 0 {
		return []Slot{}
	}

	dayKey := calendar.ISODate(day)
	busy := make([]Appointment, 0, len(existing))
	for _, a := range existing {
		if a.Status.Occupies() && a.DayKey() == dayKey {
			busy = append(busy, a)
		}
	}

	slots := make([]Slot, 0, int(schedule.End-schedule.Start)/schedule.SlotMinutes)
	step := calendar.Clock(schedule.SlotMinutes)
	for start := schedule.Start; start+step <= schedule.End; start += step {
		end := start + step
		slots = append(slots, Slot{Start: start, End: end, Available: FindConflict(busy, start, end) == nil})
	}
	return slots
}

// WithinHours checks [start, end) against the active schedule for day. The
// returned error wraps ErrOutsideHours.
func WithinHours(schedules []Schedule, day time.Time, start, end calendar.Clock) error {
	schedule, ok := ScheduleFor(schedules, day)
	if !ok {
		return &OutsideHoursError{Date: day}
	}
	if start < schedule.Start || end > schedule.End {
		return &OutsideHoursError{Date: day, Schedule: &schedule}
	}
	return nil
}

// FindConflict returns the first occupying appointment overlapping
// [start, end), or nil.
func FindConflict(existing []Appointment, start, end calendar.Clock) *Appointment {
	for i := range existing {
		a := existing[i]
		if !a.Status.Occupies() {
			continue
		}
		if Overlaps(a.Start, a.End, start, end) {
			return &existing[i]
		}
	}
	return nil
}

// AvailableSlots filters slots down to the free ones, preserving order.
func AvailableSlots(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
