package patients

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Handler provides the patient HTTP endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes mounts patient endpoints. Expected under /api/patients.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{patientID}", h.get)
}

type createPatientRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Email string `json:"email" validate:"omitempty,email"`
	Notes string `json:"notes"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	var list []Patient
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		list, err = h.repo.SearchByName(r.Context(), clinicID, q, 50)
	} else {
		list, err = h.repo.ListRecent(r.Context(), clinicID, 50)
	}
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"patients": list, "count": len(list)})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req createPatientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	p := &Patient{
		ClinicID: clinicID,
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		Email:    strings.TrimSpace(req.Email),
		Notes:    req.Notes,
	}
	if err := h.repo.Create(r.Context(), p); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	p, err := h.repo.Get(r.Context(), clinicID, chi.URLParam(r, "patientID"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
