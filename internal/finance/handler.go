package finance

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Handler serves treatments, expenses, employees and the finance summary.
type Handler struct {
	service  *Service
	patients *patients.Resolver
	now      calendar.NowFunc
	logger   *logging.Logger
}

func NewHandler(service *Service, resolver *patients.Resolver, now calendar.NowFunc, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = calendar.NowIn(calendar.Location(""))
	}
	return &Handler{service: service, patients: resolver, now: now, logger: logger}
}

// RegisterRoutes mounts the finance endpoints. Expected under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/treatments", h.createTreatment)
	r.Post("/expenses", h.createExpense)
	r.Get("/finance/summary", h.summary)
	r.Get("/finance/commissions", h.commissions)
	r.Get("/employees", h.listEmployees)
	r.Post("/employees", h.createEmployee)
}

type treatmentRequest struct {
	PatientID   string `json:"patient_id" validate:"required_without=PatientName"`
	PatientName string `json:"patient_name" validate:"required_without=PatientID"`
	EmployeeID  string `json:"employee_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type expenseRequest struct {
	Description string `json:"description" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type employeeRequest struct {
	Name          string `json:"name" validate:"required"`
	CommissionBps int64  `json:"commission_bps" validate:"min=0,max=10000"`
}

// when resolves an optional date field. Empty means now; a resolved day
// keeps the current time of day so it sorts after earlier entries.
func (h *Handler) when(r *http.Request, clinicID, raw string) (time.Time, error) {
	now := h.now(r.Context(), clinicID)
	if strings.TrimSpace(raw) == "" {
		return now, nil
	}
	day, ok := calendar.ResolveDate(raw, now)
	if !ok {
		return time.Time{}, apperr.Validation("unrecognized date " + raw)
	}
	return calendar.ClockOf(now).On(day), nil
}

func (h *Handler) createTreatment(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req treatmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	category, err := catalog.ParseTreatmentCategory(req.Category)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	date, err := h.when(r, clinicID, req.Date)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	t := &Treatment{
		ClinicID:    clinicID,
		PatientID:   req.PatientID,
		EmployeeID:  req.EmployeeID,
		Name:        req.Name,
		Category:    category,
		Amount:      money.Amount(req.Amount),
		Date:        date,
		Description: req.Description,
	}
	if t.PatientID == "" {
		p, _, err := h.patients.FindOrCreate(r.Context(), clinicID, req.PatientName, "")
		if err != nil {
			httpx.WriteError(w, h.logger, err)
			return
		}
		t.PatientID, t.PatientName = p.ID, p.Name
	}
	if err := h.service.RecordTreatment(r.Context(), t); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	category, err := catalog.ParseExpenseCategory(req.Category)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	date, err := h.when(r, clinicID, req.Date)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	e := &Expense{
		ClinicID:    clinicID,
		Description: req.Description,
		Amount:      money.Amount(req.Amount),
		Category:    category,
		Date:        date,
	}
	if err := h.service.RecordExpense(r.Context(), e); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	period := calendar.ResolvePeriod(q.Get("period"), h.now(r.Context(), clinicID))
	summary, err := h.service.Summarize(r.Context(), clinicID, period, q.Get("detail") == "true")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) commissions(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	period := calendar.ResolvePeriod(r.URL.Query().Get("period"), h.now(r.Context(), clinicID))
	list, err := h.service.Commissions(r.Context(), clinicID, period)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"period": period, "commissions": list})
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	list, err := h.service.Employees(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"employees": list})
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req employeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	e := &Employee{ClinicID: clinicID, Name: req.Name, CommissionBps: req.CommissionBps, Active: true}
	if err := h.service.AddEmployee(r.Context(), e); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, e)
}
