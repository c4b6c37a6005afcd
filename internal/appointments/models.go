package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
)

// Appointment is a booked interval on a clinic's calendar. Date is the
// calendar day; Start and End are wall-clock times on that day.
type Appointment struct {
	ID            string                    `json:"id"`
	ClinicID      string                    `json:"clinic_id"`
	PatientID     string                    `json:"patient_id"`
	PatientName   string                    `json:"patient_name,omitempty"`
	Date          time.Time                 `json:"date"`
	Start         calendar.Clock            `json:"start_time"`
	End           calendar.Clock            `json:"end_time"`
	TreatmentType catalog.TreatmentCategory `json:"treatment_type"`
	Status        catalog.AppointmentStatus `json:"status"`
	Notes         string                    `json:"notes,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// DayKey identifies the appointment's calendar day independent of location.
func (a Appointment) DayKey() string {
	return calendar.ISODate(a.Date)
}

// Schedule is one weekday of a clinic's operating hours.
type Schedule struct {
	ClinicID    string         `json:"clinic_id"`
	Weekday     time.Weekday   `json:"weekday" validate:"min=0,max=6"`
	Start       calendar.Clock `json:"start_time"`
	End         calendar.Clock `json:"end_time"`
	SlotMinutes int            `json:"slot_duration" validate:"min=5,max=480"`
	Active      bool           `json:"is_active"`
}

func (s Schedule) Validate() error {
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return apperr.Validation(fmt.Sprintf("invalid weekday %d", s.Weekday))
	}
	if !s.Start.Valid() || !s.End.Valid() {
		return apperr.Validation(fmt.Sprintf("schedule %s-%s must lie within 00:00-24:00", s.Start, s.End))
	}
	if s.End <= s.Start {
		return apperr.Validation(fmt.Sprintf("schedule end %s must be after start %s", s.End, s.Start))
	}
	if s.SlotMinutes <= 0 {
		return apperr.Validation("slot duration must be positive")
	}
	return nil
}

// Slot is one bookable interval of the slot grid.
type Slot struct {
	Start     calendar.Clock `json:"start_time"`
	End       calendar.Clock `json:"end_time"`
	Available bool           `json:"available"`
}

var (
	ErrNotFound = apperr.NotFound("appointment")
	ErrConflict = apperr.Conflict("appointment overlaps an existing booking")
	// ErrOutsideHours rejects intervals the weekly schedule does not cover.
	ErrOutsideHours = apperr.Validation("appointment is outside working hours")
)

// ConflictError names the booking a requested interval collides with.
type ConflictError struct {
	Existing Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %s-%s", ErrConflict.Message, e.Existing.DayKey(), e.Existing.Start, e.Existing.End)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// OutsideHoursError names the day's working hours, or reports the clinic
// closed when Schedule is nil.
type OutsideHoursError struct {
	Date     time.Time
	Schedule *Schedule
}

func (e *OutsideHoursError) Error() string {
	day := calendar.ISODate(e.Date)
	if e.Schedule == nil {
		return fmt.Sprintf("%s: clinic is closed on %s", ErrOutsideHours.Message, day)
	}
	return fmt.Sprintf("%s: hours on %s are %s-%s", ErrOutsideHours.Message, day, e.Schedule.Start, e.Schedule.End)
}

func (e *OutsideHoursError) Unwrap() error {
	return ErrOutsideHours
}

// SlotIndexError rejects a slot choice outside the offered list.
type SlotIndexError struct {
	Index     int
	Available []Slot
}

func (e *SlotIndexError) Error() string {
	starts := make([]string, 0, len(e.Available))
	for _, s := range e.Available {
		starts = append(starts, s.Start.String())
	}
	return fmt.Sprintf("slot %d is out of range (available: %s)", e.Index, strings.Join(starts, ", "))
}

func (e *SlotIndexError) Unwrap() error {
	return apperr.Validation("slot index out of range")
}

// Repository persists appointments and weekly schedules. CreateIfFree and
// MoveIfFree run the overlap check and the write as one atomic unit.
type Repository interface {
	CreateIfFree(ctx context.Context, a *Appointment) error
	MoveIfFree(ctx context.Context, clinicID, id string, start, end calendar.Clock) error
	UpdateStatus(ctx context.Context, clinicID, id string, status catalog.AppointmentStatus) error
	Get(ctx context.Context, clinicID, id string) (*Appointment, error)
	ListByDate(ctx context.Context, clinicID string, date time.Time) ([]Appointment, error)
	ListRange(ctx context.Context, clinicID string, from, to time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, clinicID, patientID string, from time.Time) ([]Appointment, error)
	SearchScheduledByPatientName(ctx context.Context, clinicID, fragment string) ([]Appointment, error)
	Schedules(ctx context.Context, clinicID string) ([]Schedule, error)
	SaveSchedules(ctx context.Context, clinicID string, schedules []Schedule) error
}
