package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Service validates stock operations before handing them to the Repository.
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

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("product name is required")
	}
	if p.CurrentStock < 0 || p.MinStock < 0 {
		return apperr.Validation("stock levels cannot be negative")
	}
	if p.PurchasePrice < 0 || p.SalePrice < 0 {
		return apperr.Validation("prices cannot be negative")
	}
	if p.Unit == "" {
		p.Unit = "adet"
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) Products(ctx context.Context, clinicID string) ([]Product, error) {
	return s.repo.ListProducts(ctx, clinicID)
}

// LowStock returns products at or below their minimum level.
func (s *Service) LowStock(ctx context.Context, clinicID string) ([]Product, error) {
	all, err := s.repo.ListProducts(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	var out []Product
	for _, p := range all {
		if p.Low() {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindProduct returns the first product, in creation order, whose name
// contains query.
func (s *Service) FindProduct(ctx context.Context, clinicID, query string) (*Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("product name is required")
	}
	matches, err := s.repo.SearchProducts(ctx, clinicID, query)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.Wrap(ErrProductNotFound, fmt.Errorf("no product matches %q", query))
	}
	p := matches[0]
	return &p, nil
}

// MoveByName applies an IN or OUT movement to the product matching query.
func (s *Service) MoveByName(ctx context.Context, clinicID, query string, kind catalog.MovementType, quantity int, note string) (*StockMovement, *Product, error) {
	if kind == catalog.MovementAdjustment {
		return nil, nil, apperr.Validation("adjustments must name a product id")
	}
	product, err := s.FindProduct(ctx, clinicID, query)
	if err != nil {
		return nil, nil, err
	}
	return s.Move(ctx, &StockMovement{
		ClinicID:  clinicID,
		ProductID: product.ID,
		Type:      kind,
		Quantity:  quantity,
		Note:      note,
	})
}

// Move validates mv and applies it atomically.
func (s *Service) Move(ctx context.Context, mv *StockMovement) (*StockMovement, *Product, error) {
	if !mv.Type.Valid() {
		return nil, nil, apperr.Validation(fmt.Sprintf("invalid movement type %q", mv.Type))
	}
	switch {
	case mv.Type == catalog.MovementAdjustment && mv.Quantity == 0:
		return nil, nil, apperr.Validation("adjustment must change the stock")
	case mv.Type != catalog.MovementAdjustment && mv.Quantity <= 0:
		return nil, nil, apperr.Validation("quantity must be positive")
	}

	product, err := s.repo.ApplyMovement(ctx, mv)
	if err != nil {
		return nil, nil, err
	}
	if product.Low() {
		s.logger.Warn("product at or below minimum stock",
			"clinic_id", mv.ClinicID, "product_id", product.ID,
			"current_stock", product.CurrentStock, "min_stock", product.MinStock)
	}
	return mv, product, nil
}

func (s *Service) Movements(ctx context.Context, clinicID, productID string, limit int) ([]StockMovement, error) {
	return s.repo.ListMovements(ctx, clinicID, productID, limit)
}
