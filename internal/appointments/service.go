package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// DefaultDurationMinutes is used when a booking names only a start time.
const DefaultDurationMinutes = 30

// BookingObserver records booking outcomes.
type BookingObserver interface {
	ObserveBooking(outcome string)
}

// Service implements slot lookup, booking and cancellation on top of a
// Repository.
type Service struct {
	repo     Repository
	observer BookingObserver
	logger   *logging.Logger
}

func NewService(repo Repository, observer BookingObserver, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, observer: observer, logger: logger}
}

// Slots returns the slot grid for day with occupancy marked.
func (s *Service) Slots(ctx context.Context, clinicID string, day time.Time) ([]Slot, error) {
	schedules, err := s.repo.Schedules(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.ListByDate(ctx, clinicID, day)
	if err != nil {
		return nil, err
	}
	return ComputeSlots(schedules, day, existing), nil
}

// Book validates a and persists it unless it falls outside the day's
// working hours (*OutsideHoursError) or overlaps an occupying appointment
// (*ConflictError).
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	if strings.TrimSpace(a.PatientID) == "" {
		return apperr.Validation("patient is required")
	}
	if err := s.prepare(a); err != nil {
		return err
	}
	if err := s.checkHours(ctx, a); err != nil {
		s.observe("outside_hours")
		return err
	}

	err := s.repo.CreateIfFree(ctx, a)
	switch {
	case err == nil:
		s.observe("ok")
		s.logger.Info("appointment booked", "clinic_id", a.ClinicID, "appointment_id", a.ID,
			"date", a.DayKey(), "start", a.Start.String())
	case errors.Is(err, ErrConflict):
		s.observe("conflict")
	default:
		s.observe("error")
	}
	return err
}

// Check runs every Book validation except the patient and the final
// atomic write. A nil result means Book would succeed barring a
// concurrent booking.
func (s *Service) Check(ctx context.Context, a *Appointment) error {
	if err := s.prepare(a); err != nil {
		return err
	}
	if err := s.checkHours(ctx, a); err != nil {
		return err
	}
	existing, err := s.repo.ListByDate(ctx, a.ClinicID, a.Date)
	if err != nil {
		return err
	}
	if clash := FindConflict(existing, a.Start, a.End); clash != nil {
		return &ConflictError{Existing: *clash}
	}
	return nil
}

// PatientDirectory resolves a booking's patient by name.
type PatientDirectory interface {
	Find(ctx context.Context, clinicID, name string) (*patients.Patient, error)
	Register(ctx context.Context, clinicID, name, phone string) (*patients.Patient, error)
	Remove(ctx context.Context, clinicID, id string) error
}

// BookForName books a for the patient matching name. An unknown name is
// registered only after the interval checks out, and removed again if
// the final write still loses to a concurrent booking.
func (s *Service) BookForName(ctx context.Context, a *Appointment, dir PatientDirectory, name, phone string) (*patients.Patient, bool, error) {
	patient, err := dir.Find(ctx, a.ClinicID, name)
	if err != nil {
		return nil, false, err
	}
	if patient != nil {
		a.PatientID, a.PatientName = patient.ID, patient.Name
		return patient, false, s.Book(ctx, a)
	}

	a.PatientName = name
	if err := s.Check(ctx, a); err != nil {
		return nil, false, err
	}
	patient, err = dir.Register(ctx, a.ClinicID, name, phone)
	if err != nil {
		return nil, false, err
	}
	a.PatientID, a.PatientName = patient.ID, patient.Name
	if err := s.Book(ctx, a); err != nil {
		if rmErr := dir.Remove(ctx, a.ClinicID, patient.ID); rmErr != nil {
			s.logger.Error("failed to remove patient after lost booking", "clinic_id", a.ClinicID,
				"patient_id", patient.ID, "error", rmErr)
		}
		return nil, false, err
	}
	return patient, true, nil
}

// prepare fills defaults and validates the interval. Intervals end by
// 24:00; a default-length booking that would cross midnight is rejected
// rather than shortened.
func (s *Service) prepare(a *Appointment) error {
	if a.Date.IsZero() {
		return apperr.Validation("appointment date is required")
	}
	if a.Start < 0 || a.Start >= calendar.EndOfDay {
		return apperr.Validation(fmt.Sprintf("start time %s must be before 24:00", a.Start))
	}
	if a.End == 0 {
		end, err := a.Start.AddWithinDay(DefaultDurationMinutes)
		if err != nil {
			return apperr.Validation(fmt.Sprintf("a %d minute appointment at %s would end after 24:00", DefaultDurationMinutes, a.Start))
		}
		a.End = end
	}
	if !a.End.Valid() {
		return apperr.Validation(fmt.Sprintf("end time %s must not be after 24:00", a.End))
	}
	if a.End <= a.Start {
		return apperr.Validation(fmt.Sprintf("end time %s must be after start time %s", a.End, a.Start))
	}
	if a.TreatmentType == "" {
		a.TreatmentType = catalog.TreatmentGenel
	}
	if !a.TreatmentType.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid treatment type %q", a.TreatmentType))
	}
	if a.Status == "" {
		a.Status = catalog.StatusScheduled
	}
	a.Date = calendar.StartOfDay(a.Date)
	return nil
}

func (s *Service) checkHours(ctx context.Context, a *Appointment) error {
	schedules, err := s.repo.Schedules(ctx, a.ClinicID)
	if err != nil {
		return err
	}
	return WithinHours(schedules, a.Date, a.Start, a.End)
}

// Cancel marks an appointment cancelled and returns it.
func (s *Service) Cancel(ctx context.Context, clinicID, id string) (*Appointment, error) {
	a, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.Status == catalog.StatusCancelled {
		return a, nil
	}
	if err := s.repo.UpdateStatus(ctx, clinicID, id, catalog.StatusCancelled); err != nil {
		return nil, err
	}
	a.Status = catalog.StatusCancelled
	return a, nil
}

// CancelOutcome reports what CancelByPatientName did. Exactly one of
// Cancelled or Candidates is set when matches exist.
type CancelOutcome struct {
	Cancelled  *Appointment
	Candidates []Appointment
}

// CancelByPatientName cancels the single scheduled appointment whose
// patient name contains name. Several matches are returned as candidates
// without cancelling anything. No match yields ErrNotFound.
func (s *Service) CancelByPatientName(ctx context.Context, clinicID, name string) (CancelOutcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CancelOutcome{}, apperr.Validation("patient name is required")
	}
	matches, err := s.repo.SearchScheduledByPatientName(ctx, clinicID, name)
	if err != nil {
		return CancelOutcome{}, err
	}
	switch len(matches) {
	case 0:
		return CancelOutcome{}, ErrNotFound
	case 1:
		if err := s.repo.UpdateStatus(ctx, clinicID, matches[0].ID, catalog.StatusCancelled); err != nil {
			return CancelOutcome{}, err
		}
		cancelled := matches[0]
		cancelled.Status = catalog.StatusCancelled
		return CancelOutcome{Cancelled: &cancelled}, nil
	default:
		return CancelOutcome{Candidates: matches}, nil
	}
}

// RescheduleToSlot moves an appointment to the index-th (1-based)
// available slot of its own day. The appointment's current interval
// counts as free while the grid is computed.
func (s *Service) RescheduleToSlot(ctx context.Context, clinicID, id string, index int) (*Appointment, error) {
	a, err := s.repo.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.Status == catalog.StatusCancelled {
		return nil, apperr.Validation("cancelled appointments cannot be rescheduled")
	}
	schedules, err := s.repo.Schedules(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.ListByDate(ctx, clinicID, a.Date)
	if err != nil {
		return nil, err
	}
	others := existing[:0:0]
	for _, e := range existing {
		if e.ID != a.ID {
			others = append(others, e)
		}
	}

	available := AvailableSlots(ComputeSlots(schedules, a.Date, others))
	if index < 1 || index > len(available) {
		return nil, &SlotIndexError{Index: index, Available: available}
	}
	slot := available[index-1]
	if err := s.repo.MoveIfFree(ctx, clinicID, a.ID, slot.Start, slot.End); err != nil {
		return nil, err
	}
	a.Start, a.End = slot.Start, slot.End
	return a, nil
}

// Day lists the occupying appointments on day, ordered by start time.
func (s *Service) Day(ctx context.Context, clinicID string, day time.Time) ([]Appointment, error) {
	all, err := s.repo.ListByDate(ctx, clinicID, day)
	if err != nil {
		return nil, err
	}
	return occupying(all), nil
}

// Range lists the occupying appointments in p, ordered by day and start.
func (s *Service) Range(ctx context.Context, clinicID string, p calendar.Period) ([]Appointment, error) {
	all, err := s.repo.ListRange(ctx, clinicID, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	return occupying(all), nil
}

// Upcoming lists a patient's occupying appointments from day onwards.
func (s *Service) Upcoming(ctx context.Context, clinicID, patientID string, day time.Time) ([]Appointment, error) {
	all, err := s.repo.ListByPatient(ctx, clinicID, patientID, calendar.StartOfDay(day))
	if err != nil {
		return nil, err
	}
	return occupying(all), nil
}

func (s *Service) Schedules(ctx context.Context, clinicID string) ([]Schedule, error) {
	return s.repo.Schedules(ctx, clinicID)
}

// SetSchedules replaces the weekly schedule. At most one row per weekday.
func (s *Service) SetSchedules(ctx context.Context, clinicID string, schedules []Schedule) error {
	seen := make(map[time.Weekday]bool, len(schedules))
	for i := range schedules {
		schedules[i].ClinicID = clinicID
		if err := schedules[i].Validate(); err != nil {
			return err
		}
		if seen[schedules[i].Weekday] {
			return apperr.Validation(fmt.Sprintf("weekday %d listed twice", schedules[i].Weekday))
		}
		seen[schedules[i].Weekday] = true
	}
	return s.repo.SaveSchedules(ctx, clinicID, schedules)
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveBooking(outcome)
	}
}

func occupying(all []Appointment) []Appointment {
	out := make([]Appointment, 0, len(all))
	for _, a := range all {
		if a.Status.Occupies() {
			out = append(out, a)
		}
	}
	return out
}
