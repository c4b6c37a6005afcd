package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// MemoryRepository is an in-process Repository. A single mutex makes the
// check-then-write in CreateIfFree atomic.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments []Appointment
	schedules    map[string][]Schedule
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{schedules: make(map[string][]Schedule)}
}

func (m *MemoryRepository) CreateIfFree(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Status.Occupies() {
		if c := FindConflict(m.sameDay(a.ClinicID, a.DayKey(), ""), a.Start, a.End); c != nil {
			return &ConflictError{Existing: *c}
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.appointments = append(m.appointments, *a)
	return nil
}

func (m *MemoryRepository) MoveIfFree(_ context.Context, clinicID, id string, start, end calendar.Clock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(clinicID, id)
	if idx < 0 {
		return ErrNotFound
	}
	target := m.appointments[idx]
	if c := FindConflict(m.sameDay(clinicID, target.DayKey(), id), start, end); c != nil {
		return &ConflictError{Existing: *c}
	}
	m.appointments[idx].Start = start
	m.appointments[idx].End = end
	return nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, clinicID, id string, status catalog.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.index(clinicID, id)
	if idx < 0 {
		return ErrNotFound
	}
	m.appointments[idx].Status = status
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, clinicID, id string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.index(clinicID, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	a := m.appointments[idx]
	return &a, nil
}

func (m *MemoryRepository) ListByDate(_ context.Context, clinicID string, date time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sameDay(clinicID, calendar.ISODate(date), "")
	sortAppointments(out)
	return out, nil
}

func (m *MemoryRepository) ListRange(_ context.Context, clinicID string, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fromKey, toKey := calendar.ISODate(from), calendar.ISODate(to)
	var out []Appointment
	for _, a := range m.appointments {
		if a.ClinicID == clinicID && a.DayKey() >= fromKey && a.DayKey() < toKey {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, clinicID, patientID string, from time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fromKey := calendar.ISODate(from)
	var out []Appointment
	for _, a := range m.appointments {
		if a.ClinicID == clinicID && a.PatientID == patientID && a.DayKey() >= fromKey {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemoryRepository) SearchScheduledByPatientName(_ context.Context, clinicID, fragment string) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.ClinicID == clinicID && a.Status == catalog.StatusScheduled && textnorm.Contains(a.PatientName, fragment) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemoryRepository) Schedules(_ context.Context, clinicID string) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Schedule(nil), m.schedules[clinicID]...), nil
}

func (m *MemoryRepository) SaveSchedules(_ context.Context, clinicID string, schedules []Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[clinicID] = append([]Schedule(nil), schedules...)
	return nil
}

func (m *MemoryRepository) index(clinicID, id string) int {
	for i, a := range m.appointments {
		if a.ClinicID == clinicID && a.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryRepository) sameDay(clinicID, dayKey, excludeID string) []Appointment {
	var out []Appointment
	for _, a := range m.appointments {
		if a.ClinicID == clinicID && a.DayKey() == dayKey && a.ID != excludeID {
			out = append(out, a)
		}
	}
	return out
}

func sortAppointments(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].DayKey() != list[j].DayKey() {
			return list[i].DayKey() < list[j].DayKey()
		}
		return list[i].Start < list[j].Start
	})
}
