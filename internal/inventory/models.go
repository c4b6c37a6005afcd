// Package inventory tracks clinic products and the stock movements that
// change their on-hand quantity.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
)

type Product struct {
	ID            string       `json:"id"`
	ClinicID      string       `json:"clinic_id"`
	Name          string       `json:"name"`
	Unit          string       `json:"unit"`
	CurrentStock  int          `json:"current_stock"`
	MinStock      int          `json:"min_stock"`
	PurchasePrice money.Amount `json:"purchase_price"`
	SalePrice     money.Amount `json:"sale_price"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Low reports whether the product is at or below its minimum level.
func (p Product) Low() bool {
	return p.CurrentStock <= p.MinStock
}

// StockMovement is one change to a product's stock. Quantity is positive
// for IN and OUT; ADJUSTMENT carries a signed delta.
type StockMovement struct {
	ID          string               `json:"id"`
	ClinicID    string               `json:"clinic_id"`
	ProductID   string               `json:"product_id"`
	ProductName string               `json:"product_name,omitempty"`
	Type        catalog.MovementType `json:"type"`
	Quantity    int                  `json:"quantity"`
	Note        string               `json:"note,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Delta is the signed change the movement applies to current stock.
func (m StockMovement) Delta() int {
	if m.Type == catalog.MovementOut {
		return -m.Quantity
	}
	return m.Quantity
}

var (
	ErrProductNotFound   = apperr.NotFound("product")
	ErrInsufficientStock = apperr.Conflict("insufficient stock")
)

// InsufficientStockError reports an OUT movement larger than the stock on hand.
type InsufficientStockError struct {
	Product   Product
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: have %d, requested %d", e.Product.Name, e.Product.CurrentStock, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Repository persists products and movements. ApplyMovement must write the
// movement, update current stock and record any low-stock event as one
// all-or-nothing unit.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, clinicID, id string) (*Product, error)
	ListProducts(ctx context.Context, clinicID string) ([]Product, error)
	SearchProducts(ctx context.Context, clinicID, fragment string) ([]Product, error)
	ApplyMovement(ctx context.Context, m *StockMovement) (*Product, error)
	ListMovements(ctx context.Context, clinicID, productID string, limit int) ([]StockMovement, error)
}

// nextStock validates m against p and returns the resulting stock level.
func nextStock(p Product, m StockMovement) (int, error) {
	next := p.CurrentStock + m.Delta()
	if next < 0 {
		requested := m.Quantity
		if requested < 0 {
			requested = -requested
		}
		return 0, &InsufficientStockError{Product: p, Requested: requested}
	}
	return next, nil
}

func lowStockEvent(p Product, m StockMovement) events.LowStockV1 {
	return events.LowStockV1{
		ClinicID:     p.ClinicID,
		ProductID:    p.ID,
		ProductName:  p.Name,
		Unit:         p.Unit,
		CurrentStock: p.CurrentStock,
		MinStock:     p.MinStock,
		MovementID:   m.ID,
		OccurredAt:   m.CreatedAt,
	}
}
