package finance

import (
	"context"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
)

// Treatment is an income record: a procedure performed and paid for.
type Treatment struct {
	ID          string                    `json:"id"`
	ClinicID    string                    `json:"clinic_id"`
	PatientID   string                    `json:"patient_id"`
	PatientName string                    `json:"patient_name,omitempty"`
	EmployeeID  string                    `json:"employee_id,omitempty"`
	Name        string                    `json:"name"`
	Category    catalog.TreatmentCategory `json:"category"`
	Amount      money.Amount              `json:"amount"`
	Date        time.Time                 `json:"date"`
	Description string                    `json:"description,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// Expense is money paid out by the clinic.
type Expense struct {
	ID          string                  `json:"id"`
	ClinicID    string                  `json:"clinic_id"`
	Description string                  `json:"description"`
	Amount      money.Amount            `json:"amount"`
	Category    catalog.ExpenseCategory `json:"category"`
	Date        time.Time               `json:"date"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Employee earns a commission, in basis points, on treatments they perform.
type Employee struct {
	ID            string    `json:"id"`
	ClinicID      string    `json:"clinic_id"`
	Name          string    `json:"name"`
	CommissionBps int64     `json:"commission_bps"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Totals aggregates income and expense over a range.
type Totals struct {
	Income       money.Amount `json:"income"`
	IncomeCount  int          `json:"income_count"`
	Expense      money.Amount `json:"expense"`
	ExpenseCount int          `json:"expense_count"`
}

func (t Totals) Net() money.Amount {
	return t.Income - t.Expense
}

// Ranking is one row of a leaderboard.
type Ranking struct {
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Count int          `json:"count"`
	Total money.Amount `json:"total"`
}

var ErrEmployeeNotFound = apperr.NotFound("employee")

// Repository persists treatments, expenses and employees. Range queries
// cover [from, to).
type Repository interface {
	CreateTreatment(ctx context.Context, t *Treatment) error
	CreateExpense(ctx context.Context, e *Expense) error
	CreateEmployee(ctx context.Context, e *Employee) error
	ListEmployees(ctx context.Context, clinicID string) ([]Employee, error)

	Totals(ctx context.Context, clinicID string, from, to time.Time) (Totals, error)
	LifetimeTotals(ctx context.Context, clinicID string) (Totals, error)
	ListTreatments(ctx context.Context, clinicID string, from, to time.Time) ([]Treatment, error)
	ListExpenses(ctx context.Context, clinicID string, from, to time.Time) ([]Expense, error)
	ListTreatmentsByPatient(ctx context.Context, clinicID, patientID string, limit int) ([]Treatment, error)
	ListTreatmentsByCategory(ctx context.Context, clinicID string, category catalog.TreatmentCategory) ([]Treatment, error)
	TopServices(ctx context.Context, clinicID string, from, to time.Time, limit int) ([]Ranking, error)
	TopPatients(ctx context.Context, clinicID string, from, to time.Time, limit int) ([]Ranking, error)
}
