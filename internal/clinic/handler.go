package clinic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// ConfigStore is the clinic persistence the handler needs. Both Store and
// CachedStore satisfy it.
type ConfigStore interface {
	ConfigGetter
	Set(ctx context.Context, cfg *Config) error
	BindChat(ctx context.Context, clinicID, chatID string) error
	UnbindChat(ctx context.Context, chatID string) error
	ClinicForChat(ctx context.Context, chatID string) (string, bool, error)
	BindPatientChat(ctx context.Context, clinicID, phone, chatID string) error
}

// Handler provides HTTP endpoints for clinic configuration management.
type Handler struct {
	store  ConfigStore
	logger *logging.Logger
}

// NewHandler creates a new clinic config HTTP handler.
func NewHandler(store ConfigStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts clinic endpoints. Expected under /api/clinic.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.getConfig)
	r.Put("/config", h.updateConfig)
	r.Post("/chats", h.bindChat)
	r.Delete("/chats/{chatID}", h.unbindChat)
	r.Post("/patient-chats", h.bindPatientChat)
}

// UpdateConfigRequest is the request body for updating clinic config. Nil
// fields are left unchanged.
type UpdateConfigRequest struct {
	Name                      *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Timezone                  *string `json:"timezone,omitempty"`
	OwnerEmail                *string `json:"owner_email,omitempty" validate:"omitempty,email"`
	DefaultAppointmentMinutes *int    `json:"default_appointment_minutes,omitempty" validate:"omitempty,min=5,max=480"`
	ReminderAutoSend          *bool   `json:"reminder_auto_send,omitempty"`
	ReminderTone              *string `json:"reminder_tone,omitempty" validate:"omitempty,oneof=samimi resmi"`
	DailySummary              *bool   `json:"daily_summary,omitempty"`
}

type bindChatRequest struct {
	ChatID string `json:"chat_id" validate:"required,max=64"`
}

type bindPatientChatRequest struct {
	Phone  string `json:"phone" validate:"required,max=32"`
	ChatID string `json:"chat_id" validate:"required,max=64"`
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	cfg, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to get clinic config", "clinic_id", clinicID, "error", err)
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req UpdateConfigRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	cfg, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := applyUpdate(cfg, req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.store.Set(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save clinic config", "clinic_id", clinicID, "error", err)
		httpx.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("clinic config updated", "clinic_id", clinicID)
	httpx.WriteJSON(w, http.StatusOK, cfg)
}

func applyUpdate(cfg *Config, req UpdateConfigRequest) error {
	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Timezone != nil {
		tz := strings.TrimSpace(*req.Timezone)
		if _, err := time.LoadLocation(tz); err != nil {
			return apperr.Validation("unknown timezone " + tz)
		}
		cfg.Timezone = tz
	}
	if req.OwnerEmail != nil {
		cfg.OwnerEmail = strings.TrimSpace(*req.OwnerEmail)
	}
	if req.DefaultAppointmentMinutes != nil {
		cfg.DefaultAppointmentMinutes = *req.DefaultAppointmentMinutes
	}
	if req.ReminderAutoSend != nil {
		cfg.ReminderAutoSend = *req.ReminderAutoSend
	}
	if req.ReminderTone != nil {
		cfg.ReminderTone = *req.ReminderTone
	}
	if req.DailySummary != nil {
		cfg.DailySummary = *req.DailySummary
	}
	return nil
}

func (h *Handler) bindChat(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req bindChatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.store.BindChat(r.Context(), clinicID, req.ChatID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("chat bound", "clinic_id", clinicID, "chat_id", req.ChatID)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"clinic_id": clinicID, "chat_id": req.ChatID})
}

func (h *Handler) unbindChat(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	chatID := chi.URLParam(r, "chatID")
	owner, ok, err := h.store.ClinicForChat(r.Context(), chatID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if !ok || owner != clinicID {
		httpx.WriteError(w, h.logger, apperr.NotFound("chat"))
		return
	}
	if err := h.store.UnbindChat(r.Context(), chatID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bindPatientChat(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req bindPatientChatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if NormalizePhone(req.Phone) == "" {
		httpx.WriteError(w, h.logger, apperr.Validation("phone must contain digits"))
		return
	}
	if err := h.store.BindPatientChat(r.Context(), clinicID, req.Phone, req.ChatID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"phone": NormalizePhone(req.Phone), "chat_id": req.ChatID})
}
