package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Querier reads audit events back.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// Handler exposes the audit trail read-only.
type Handler struct {
	events Querier
	logger *logging.Logger
}

func NewHandler(events Querier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{events: events, logger: logger}
}

// RegisterRoutes mounts the audit endpoint. Expected under /api/audit.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	filter := Filter{
		ClinicID:  clinicID,
		EventType: EventType(q.Get("type")),
		Kind:      q.Get("kind"),
		Tag:       q.Get("tag"),
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	events, err := h.events.Query(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
