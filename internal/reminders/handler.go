package reminders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// PreferencesFunc returns a clinic's reminder preferences.
type PreferencesFunc func(r *http.Request, clinicID string) Preferences

// Handler provides the reminder HTTP endpoints.
type Handler struct {
	service *Service
	prefs   PreferencesFunc
	logger  *logging.Logger
}

func NewHandler(service *Service, prefs PreferencesFunc, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if prefs == nil {
		prefs = func(*http.Request, string) Preferences { return Preferences{} }
	}
	return &Handler{service: service, prefs: prefs, logger: logger}
}

// RegisterRoutes mounts reminder endpoints. Expected under /api/reminders.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/due", h.listDue)
	r.Post("/send", h.sendAll)
	r.Get("/rules", h.listRules)
	r.Post("/rules", h.saveRule)
	r.Put("/rules/{ruleID}", h.saveRule)
}

type ruleRequest struct {
	TreatmentCategory string `json:"treatment_category" validate:"required"`
	IntervalDays      int    `json:"interval_days" validate:"required,min=1,max=3650"`
	MessageTemplate   string `json:"message_template" validate:"max=1000"`
	IsActive          *bool  `json:"is_active"`
}

func (h *Handler) listDue(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	due, err := h.service.Due(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"due": due, "count": len(due)})
}

func (h *Handler) sendAll(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	tally, err := h.service.SendAll(r.Context(), clinicID, h.prefs(r, clinicID))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tally)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	rules, err := h.service.Rules(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (h *Handler) saveRule(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	category, err := catalog.ParseTreatmentCategory(req.TreatmentCategory)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	rule := &Rule{
		ID:              chi.URLParam(r, "ruleID"),
		ClinicID:        clinicID,
		Category:        category,
		IntervalDays:    req.IntervalDays,
		MessageTemplate: req.MessageTemplate,
		Active:          req.IsActive == nil || *req.IsActive,
	}
	if err := h.service.SaveRule(r.Context(), rule); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	status := http.StatusCreated
	if chi.URLParam(r, "ruleID") != "" {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, rule)
}
