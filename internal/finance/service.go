package finance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Service records income and expenses and builds period reports.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Repository exposes the underlying store for read-only report helpers.
func (s *Service) Repository() Repository {
	return s.repo
}

// RecordTreatment validates and stores an income record.
func (s *Service) RecordTreatment(ctx context.Context, t *Treatment) error {
	if strings.TrimSpace(t.ClinicID) == "" {
		return apperr.Validation("clinic is required")
	}
	if strings.TrimSpace(t.PatientID) == "" {
		return apperr.Validation("patient is required")
	}
	if t.Amount <= 0 {
		return apperr.Validation("amount must be positive")
	}
	if t.Category == "" {
		t.Category = catalog.TreatmentGenel
	}
	if !t.Category.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid treatment category %q", t.Category))
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		t.Name = t.Category.Label()
	}
	if t.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	return s.repo.CreateTreatment(ctx, t)
}

// RecordExpense validates and stores an expense.
func (s *Service) RecordExpense(ctx context.Context, e *Expense) error {
	if strings.TrimSpace(e.ClinicID) == "" {
		return apperr.Validation("clinic is required")
	}
	e.Description = strings.TrimSpace(e.Description)
	if e.Description == "" {
		return apperr.Validation("description is required")
	}
	if e.Amount <= 0 {
		return apperr.Validation("amount must be positive")
	}
	if e.Category == "" {
		e.Category = catalog.ExpenseDiger
	}
	if !e.Category.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid expense category %q", e.Category))
	}
	if e.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	return s.repo.CreateExpense(ctx, e)
}

// AddEmployee stores a commission-earning employee.
func (s *Service) AddEmployee(ctx context.Context, e *Employee) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return apperr.Validation("employee name is required")
	}
	if e.CommissionBps < 0 || e.CommissionBps > 10000 {
		return apperr.Validation("commission must be between 0 and 10000 basis points")
	}
	return s.repo.CreateEmployee(ctx, e)
}

func (s *Service) Employees(ctx context.Context, clinicID string) ([]Employee, error) {
	return s.repo.ListEmployees(ctx, clinicID)
}

// Summary is the P&L view of one period.
type Summary struct {
	Period     calendar.Period `json:"period"`
	Totals     Totals          `json:"totals"`
	Net        money.Amount    `json:"net"`
	ByCategory []CategoryTotal `json:"by_category,omitempty"`
	Expenses   []CategoryTotal `json:"expenses_by_category,omitempty"`
}

// CategoryTotal is an income or expense subtotal.
type CategoryTotal struct {
	Category string       `json:"category"`
	Label    string       `json:"label"`
	Count    int          `json:"count"`
	Total    money.Amount `json:"total"`
}

// Summarize returns totals for p. When detailed is set the per-category
// breakdown is filled in as well.
func (s *Service) Summarize(ctx context.Context, clinicID string, p calendar.Period, detailed bool) (*Summary, error) {
	totals, err := s.repo.Totals(ctx, clinicID, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	out := &Summary{Period: p, Totals: totals, Net: totals.Net()}
	if !detailed {
		return out, nil
	}

	treatments, err := s.repo.ListTreatments(ctx, clinicID, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	income := map[catalog.TreatmentCategory]*CategoryTotal{}
	for _, t := range treatments {
		ct, ok := income[t.Category]
		if !ok {
			ct = &CategoryTotal{Category: string(t.Category), Label: t.Category.Label()}
			income[t.Category] = ct
		}
		ct.Count++
		ct.Total += t.Amount
	}
	for _, c := range catalog.TreatmentCategories {
		if ct, ok := income[c]; ok {
			out.ByCategory = append(out.ByCategory, *ct)
		}
	}

	expenses, err := s.repo.ListExpenses(ctx, clinicID, p.Start, p.End)
	if err != nil {
		return nil, err
	}
	spent := map[catalog.ExpenseCategory]*CategoryTotal{}
	for _, e := range expenses {
		ct, ok := spent[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: string(e.Category), Label: e.Category.Label()}
			spent[e.Category] = ct
		}
		ct.Count++
		ct.Total += e.Amount
	}
	for _, c := range catalog.ExpenseCategories {
		if ct, ok := spent[c]; ok {
			out.Expenses = append(out.Expenses, *ct)
		}
	}
	return out, nil
}

// CashPosition is lifetime income minus lifetime expense.
func (s *Service) CashPosition(ctx context.Context, clinicID string) (Totals, error) {
	return s.repo.LifetimeTotals(ctx, clinicID)
}

// Commission is one employee's earnings for a period.
type Commission struct {
	EmployeeID    string       `json:"employee_id"`
	Name          string       `json:"name"`
	CommissionBps int64        `json:"commission_bps"`
	Treatments    int          `json:"treatments"`
	Revenue       money.Amount `json:"revenue"`
	Commission    money.Amount `json:"commission"`
}

// Commissions computes Σ amount×bps/10000 per employee, truncating each
// treatment's share. Employees without treatments in p are included with
// zero totals when active.
func (s *Service) Commissions(ctx context.Context, clinicID string, p calendar.Period) ([]Commission, error) {
	employees, err := s.repo.ListEmployees(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	treatments, err := s.repo.ListTreatments(ctx, clinicID, p.Start, p.End)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Commission, len(employees))
	for _, e := range employees {
		byID[e.ID] = &Commission{EmployeeID: e.ID, Name: e.Name, CommissionBps: e.CommissionBps}
	}
	for _, t := range treatments {
		if t.EmployeeID == "" {
			continue
		}
		c, ok := byID[t.EmployeeID]
		if !ok {
			s.logger.Warn("treatment references unknown employee", "clinic_id", clinicID, "employee_id", t.EmployeeID)
			continue
		}
		c.Treatments++
		c.Revenue += t.Amount
		c.Commission += t.Amount.Percent(c.CommissionBps)
	}

	out := make([]Commission, 0, len(byID))
	for _, e := range employees {
		c := byID[e.ID]
		if !e.Active && c.Treatments == 0 {
			continue
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Commission != out[j].Commission {
			return out[i].Commission > out[j].Commission
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// TopServices ranks treatment names by revenue in p.
func (s *Service) TopServices(ctx context.Context, clinicID string, p calendar.Period, limit int) ([]Ranking, error) {
	return s.repo.TopServices(ctx, clinicID, p.Start, p.End, limit)
}

// TopPatients ranks patients by revenue in p.
func (s *Service) TopPatients(ctx context.Context, clinicID string, p calendar.Period, limit int) ([]Ranking, error) {
	return s.repo.TopPatients(ctx, clinicID, p.Start, p.End, limit)
}

// PatientHistory returns the newest treatments of a patient.
func (s *Service) PatientHistory(ctx context.Context, clinicID, patientID string, limit int) ([]Treatment, error) {
	return s.repo.ListTreatmentsByPatient(ctx, clinicID, patientID, limit)
}
