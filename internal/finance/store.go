package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores treatments, expenses and employees.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const treatmentSelect = `
	SELECT t.id, t.clinic_id, t.patient_id, COALESCE(p.name, ''), COALESCE(t.employee_id, ''), t.name,
		t.category, t.amount, t.date, t.description, t.created_at
	FROM treatments t
	LEFT JOIN patients p ON p.id = t.patient_id`

func (s *PostgresRepository) CreateTreatment(ctx context.Context, t *Treatment) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	var employeeID any
	if t.EmployeeID != "" {
		employeeID = t.EmployeeID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO treatments (id, clinic_id, patient_id, employee_id, name, category, amount, date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.ClinicID, t.PatientID, employeeID, t.Name, string(t.Category), int64(t.Amount), t.Date, t.Description, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("finance: create treatment: %w", err)
	}
	return nil
}

func (s *PostgresRepository) CreateExpense(ctx context.Context, e *Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO expenses (id, clinic_id, description, amount, category, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ClinicID, e.Description, int64(e.Amount), string(e.Category), e.Date, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("finance: create expense: %w", err)
	}
	return nil
}

func (s *PostgresRepository) CreateEmployee(ctx context.Context, e *Employee) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO employees (id, clinic_id, name, commission_bps, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ClinicID, e.Name, e.CommissionBps, e.Active, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("finance: create employee: %w", err)
	}
	return nil
}

func (s *PostgresRepository) ListEmployees(ctx context.Context, clinicID string) ([]Employee, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, name, commission_bps, active, created_at
		FROM employees WHERE clinic_id = $1 ORDER BY name`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("finance: list employees: %w", err)
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.ClinicID, &e.Name, &e.CommissionBps, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresRepository) Totals(ctx context.Context, clinicID string, from, to time.Time) (Totals, error) {
	row := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM treatments WHERE clinic_id = $1 AND date >= $2 AND date < $3),
			(SELECT COUNT(*) FROM treatments WHERE clinic_id = $1 AND date >= $2 AND date < $3),
			(SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE clinic_id = $1 AND date >= $2 AND date < $3),
			(SELECT COUNT(*) FROM expenses WHERE clinic_id = $1 AND date >= $2 AND date < $3)`,
		clinicID, from, to)
	return scanTotals(row, "totals")
}

func (s *PostgresRepository) LifetimeTotals(ctx context.Context, clinicID string) (Totals, error) {
	row := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM treatments WHERE clinic_id = $1),
			(SELECT COUNT(*) FROM treatments WHERE clinic_id = $1),
			(SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE clinic_id = $1),
			(SELECT COUNT(*) FROM expenses WHERE clinic_id = $1)`,
		clinicID)
	return scanTotals(row, "lifetime totals")
}

func scanTotals(row pgx.Row, op string) (Totals, error) {
	var income, expense int64
	var out Totals
	if err := row.Scan(&income, &out.IncomeCount, &expense, &out.ExpenseCount); err != nil {
		return Totals{}, fmt.Errorf("finance: %s: %w", op, err)
	}
	out.Income = money.Amount(income)
	out.Expense = money.Amount(expense)
	return out, nil
}

func (s *PostgresRepository) ListTreatments(ctx context.Context, clinicID string, from, to time.Time) ([]Treatment, error) {
	return s.queryTreatments(ctx, "list treatments",
		treatmentSelect+` WHERE t.clinic_id = $1 AND t.date >= $2 AND t.date < $3 ORDER BY t.date`,
		clinicID, from, to)
}

func (s *PostgresRepository) ListTreatmentsByPatient(ctx context.Context, clinicID, patientID string, limit int) ([]Treatment, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryTreatments(ctx, "list treatments by patient",
		treatmentSelect+` WHERE t.clinic_id = $1 AND t.patient_id = $2 ORDER BY t.date DESC LIMIT $3`,
		clinicID, patientID, limit)
}

func (s *PostgresRepository) ListTreatmentsByCategory(ctx context.Context, clinicID string, category catalog.TreatmentCategory) ([]Treatment, error) {
	return s.queryTreatments(ctx, "list treatments by category",
		treatmentSelect+` WHERE t.clinic_id = $1 AND t.category = $2 ORDER BY t.date`,
		clinicID, string(category))
}

func (s *PostgresRepository) queryTreatments(ctx context.Context, op, sql string, args ...any) ([]Treatment, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("finance: %s: %w", op, err)
	}
	defer rows.Close()
	var out []Treatment
	for rows.Next() {
		var t Treatment
		var category string
		var amount int64
		if err := rows.Scan(&t.ID, &t.ClinicID, &t.PatientID, &t.PatientName, &t.EmployeeID, &t.Name,
			&category, &amount, &t.Date, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan treatment: %w", err)
		}
		t.Category = catalog.TreatmentCategory(category)
		t.Amount = money.Amount(amount)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finance: %s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresRepository) ListExpenses(ctx context.Context, clinicID string, from, to time.Time) ([]Expense, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, description, amount, category, date, created_at
		FROM expenses
		WHERE clinic_id = $1 AND date >= $2 AND date < $3
		ORDER BY date`, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("finance: list expenses: %w", err)
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		var e Expense
		var category string
		var amount int64
		if err := rows.Scan(&e.ID, &e.ClinicID, &e.Description, &amount, &category, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("finance: scan expense: %w", err)
		}
		e.Category = catalog.ExpenseCategory(category)
		e.Amount = money.Amount(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresRepository) TopServices(ctx context.Context, clinicID string, from, to time.Time, limit int) ([]Ranking, error) {
	return s.ranking(ctx, "top services", `
		SELECT t.name, t.name, COUNT(*), SUM(t.amount)
		FROM treatments t
		WHERE t.clinic_id = $1 AND t.date >= $2 AND t.date < $3
		GROUP BY t.name
		ORDER BY SUM(t.amount) DESC, COUNT(*) DESC, t.name
		LIMIT $4`, clinicID, from, to, limit)
}

func (s *PostgresRepository) TopPatients(ctx context.Context, clinicID string, from, to time.Time, limit int) ([]Ranking, error) {
	return s.ranking(ctx, "top patients", `
		SELECT t.patient_id, COALESCE(MAX(p.name), ''), COUNT(*), SUM(t.amount)
		FROM treatments t
		LEFT JOIN patients p ON p.id = t.patient_id
		WHERE t.clinic_id = $1 AND t.date >= $2 AND t.date < $3
		GROUP BY t.patient_id
		ORDER BY SUM(t.amount) DESC, COUNT(*) DESC, 2
		LIMIT $4`, clinicID, from, to, limit)
}

func (s *PostgresRepository) ranking(ctx context.Context, op, sql string, clinicID string, from, to time.Time, limit int) ([]Ranking, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx, sql, clinicID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("finance: %s: %w", op, err)
	}
	defer rows.Close()
	var out []Ranking
	for rows.Next() {
		var r Ranking
		var total int64
		if err := rows.Scan(&r.Key, &r.Label, &r.Count, &total); err != nil {
			return nil, fmt.Errorf("finance: scan %s: %w", op, err)
		}
		r.Total = money.Amount(total)
		out = append(out, r)
	}
	return out, rows.Err()
}
