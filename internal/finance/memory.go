package finance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
)

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	treatments []Treatment
	expenses   []Expense
	employees  []Employee
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) CreateTreatment(_ context.Context, t *Treatment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.treatments = append(m.treatments, *t)
	return nil
}

func (m *MemoryRepository) CreateExpense(_ context.Context, e *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.expenses = append(m.expenses, *e)
	return nil
}

func (m *MemoryRepository) CreateEmployee(_ context.Context, e *Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.employees = append(m.employees, *e)
	return nil
}

func (m *MemoryRepository) ListEmployees(_ context.Context, clinicID string) ([]Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Employee
	for _, e := range m.employees {
		if e.ClinicID == clinicID {
			out = append(out, e)
		}
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (m *MemoryRepository) Totals(_ context.Context, clinicID string, from, to time.Time) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out Totals
	for _, t := range m.treatments {
		if t.ClinicID == clinicID && inRange(t.Date, from, to) {
			out.Income += t.Amount
			out.IncomeCount++
		}
	}
	for _, e := range m.expenses {
		if e.ClinicID == clinicID && inRange(e.Date, from, to) {
			out.Expense += e.Amount
			out.ExpenseCount++
		}
	}
	return out, nil
}

func (m *MemoryRepository) LifetimeTotals(ctx context.Context, clinicID string) (Totals, error) {
	return m.Totals(ctx, clinicID, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (m *MemoryRepository) ListTreatments(_ context.Context, clinicID string, from, to time.Time) ([]Treatment, error) {
	return m.filterTreatments(func(t Treatment) bool {
		return t.ClinicID == clinicID && inRange(t.Date, from, to)
	}, 0), nil
}

func (m *MemoryRepository) ListExpenses(_ context.Context, clinicID string, from, to time.Time) ([]Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Expense
	for _, e := range m.expenses {
		if e.ClinicID == clinicID && inRange(e.Date, from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListTreatmentsByPatient returns the newest treatments first.
func (m *MemoryRepository) ListTreatmentsByPatient(_ context.Context, clinicID, patientID string, limit int) ([]Treatment, error) {
	list := m.filterTreatments(func(t Treatment) bool {
		return t.ClinicID == clinicID && t.PatientID == patientID
	}, 0)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemoryRepository) ListTreatmentsByCategory(_ context.Context, clinicID string, category catalog.TreatmentCategory) ([]Treatment, error) {
	return m.filterTreatments(func(t Treatment) bool {
		return t.ClinicID == clinicID && t.Category == category
	}, 0), nil
}

func (m *MemoryRepository) TopServices(ctx context.Context, clinicID string, from, to time.Time, limit int) ([]Ranking, error) {
	list, _ := m.ListTreatments(ctx, clinicID, from, to)
	return rank(list, func(t Treatment) (string, string) { return t.Name, t.Name }, limit), nil
}

func (m *MemoryRepository) TopPatients(ctx context.Context, clinicID string, from, to time.Time, limit int) ([]Ranking, error) {
	list, _ := m.ListTreatments(ctx, clinicID, from, to)
	return rank(list, func(t Treatment) (string, string) { return t.PatientID, t.PatientName }, limit), nil
}

func (m *MemoryRepository) filterTreatments(keep func(Treatment) bool, limit int) []Treatment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Treatment
	for _, t := range m.treatments {
		if keep(t) {
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// rank groups treatments and orders groups by total desc, then count desc,
// then label.
func rank(list []Treatment, group func(Treatment) (key, label string), limit int) []Ranking {
	byKey := map[string]*Ranking{}
	var order []string
	for _, t := range list {
		key, label := group(t)
		r, ok := byKey[key]
		if !ok {
			r = &Ranking{Key: key, Label: label}
			byKey[key] = r
			order = append(order, key)
		}
		r.Count++
		r.Total = money.Sum(r.Total, t.Amount)
	}
	out := make([]Ranking, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
