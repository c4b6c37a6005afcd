package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// EventAppender records domain events for later delivery.
type EventAppender interface {
	Append(ctx context.Context, clinicID string, evt events.CanonicalEvent) (uuid.UUID, error)
}

// MemoryRepository is an in-process Repository. Movements are applied under
// one mutex so concurrent OUT requests cannot oversell.
type MemoryRepository struct {
	mu        sync.Mutex
	products  []Product
	movements []StockMovement
	outbox    EventAppender
}

func NewMemoryRepository(outbox EventAppender) *MemoryRepository {
	return &MemoryRepository{outbox: outbox}
}

func (m *MemoryRepository) CreateProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.products = append(m.products, *p)
	return nil
}

func (m *MemoryRepository) GetProduct(_ context.Context, clinicID, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.index(clinicID, id)
	if idx < 0 {
		return nil, ErrProductNotFound
	}
	p := m.products[idx]
	return &p, nil
}

func (m *MemoryRepository) ListProducts(_ context.Context, clinicID string) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		if p.ClinicID == clinicID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return textnorm.Fold(out[i].Name) < textnorm.Fold(out[j].Name) })
	return out, nil
}

// SearchProducts returns matches in creation order.
func (m *MemoryRepository) SearchProducts(_ context.Context, clinicID, fragment string) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		if p.ClinicID == clinicID && textnorm.Contains(p.Name, fragment) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ApplyMovement(ctx context.Context, mv *StockMovement) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(mv.ClinicID, mv.ProductID)
	if idx < 0 {
		return nil, ErrProductNotFound
	}
	product := m.products[idx]
	next, err := nextStock(product, *mv)
	if err != nil {
		return nil, err
	}
	if mv.ID == "" {
		mv.ID = uuid.NewString()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	mv.ProductName = product.Name
	product.CurrentStock = next

	if product.Low() && m.outbox != nil {
		if _, err := m.outbox.Append(ctx, product.ClinicID, lowStockEvent(product, *mv)); err != nil {
			return nil, err
		}
	}
	m.products[idx] = product
	m.movements = append(m.movements, *mv)
	return &product, nil
}

// ListMovements returns the newest movements first.
func (m *MemoryRepository) ListMovements(_ context.Context, clinicID, productID string, limit int) ([]StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StockMovement
	for i := len(m.movements) - 1; i >= 0; i-- {
		mv := m.movements[i]
		if mv.ClinicID != clinicID || (productID != "" && mv.ProductID != productID) {
			continue
		}
		out = append(out, mv)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) index(clinicID, id string) int {
	for i, p := range m.products {
		if p.ClinicID == clinicID && p.ID == id {
			return i
		}
	}
	return -1
}
