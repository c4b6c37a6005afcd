package inventory

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Handler serves products and stock movements.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts product endpoints. Expected under /api/products.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/low", h.low)
	r.Get("/{productID}/movements", h.movements)
	r.Post("/{productID}/movements", h.move)
}

type productRequest struct {
	Name          string `json:"name" validate:"required"`
	Unit          string `json:"unit"`
	CurrentStock  int    `json:"current_stock" validate:"min=0"`
	MinStock      int    `json:"min_stock" validate:"min=0"`
	PurchasePrice int64  `json:"purchase_price" validate:"min=0"`
	SalePrice     int64  `json:"sale_price" validate:"min=0"`
}

type movementRequest struct {
	Type     string `json:"type" validate:"required"`
	Quantity int    `json:"quantity" validate:"required"`
	Note     string `json:"note"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	products, err := h.service.Products(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) low(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	products, err := h.service.LowStock(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	p := &Product{
		ClinicID:      clinicID,
		Name:          req.Name,
		Unit:          req.Unit,
		CurrentStock:  req.CurrentStock,
		MinStock:      req.MinStock,
		PurchasePrice: money.Amount(req.PurchasePrice),
		SalePrice:     money.Amount(req.SalePrice),
	}
	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	list, err := h.service.Movements(r.Context(), clinicID, chi.URLParam(r, "productID"), 50)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"movements": list})
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	kind, err := catalog.ParseMovementType(req.Type)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	mv, product, err := h.service.Move(r.Context(), &StockMovement{
		ClinicID:  clinicID,
		ProductID: chi.URLParam(r, "productID"),
		Type:      kind,
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		var short *InsufficientStockError
		if errors.As(err, &short) {
			httpx.WriteJSON(w, http.StatusConflict, map[string]any{
				"error":         short.Error(),
				"current_stock": short.Product.CurrentStock,
			})
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"movement": mv, "product": product})
}
