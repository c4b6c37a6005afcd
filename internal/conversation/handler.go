package conversation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Handler wires HTTP requests to the assistant pipeline.
type Handler struct {
	processor  *Processor
	classifier MessageClassifier
	now        calendar.NowFunc
	logger     *logging.Logger
}

// NewHandler creates an assistant handler. classifier may be nil, which
// disables the dry-run endpoint.
func NewHandler(processor *Processor, classifier MessageClassifier, now calendar.NowFunc, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = calendar.NowIn(calendar.Location(""))
	}
	return &Handler{processor: processor, classifier: classifier, now: now, logger: logger}
}

// RegisterRoutes mounts the assistant endpoints. Expected under /api/assistant.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/messages", h.message)
	r.Post("/classify", h.classify)
}

type messageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type classifyResponse struct {
	Kind   Kind   `json:"kind"`
	Result Parsed `json:"result"`
}

// message handles POST /api/assistant/messages.
func (h *Handler) message(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.processor.Handle(r.Context(), clinicID, req.Text))
}

// classify handles POST /api/assistant/classify: classification only,
// nothing is persisted.
func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if h.classifier == nil {
		httpx.WriteJSON(w, http.StatusNotImplemented, map[string]string{"error": "classifier not configured"})
		return
	}
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	parsed := h.classifier.Classify(r.Context(), req.Text, h.now(r.Context(), clinicID))
	httpx.WriteJSON(w, http.StatusOK, classifyResponse{Kind: parsed.Kind(), Result: parsed})
}
