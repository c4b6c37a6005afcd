package patients

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients []Patient
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (m *MemoryRepository) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	m.patients = append(m.patients, *p)
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, clinicID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.patients {
		if p.ClinicID == clinicID && p.ID == id {
			m.patients = append(m.patients[:i], m.patients[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepository) Get(_ context.Context, clinicID, id string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.ClinicID == clinicID && p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// SearchByName scans in insertion order, which matches creation order.
func (m *MemoryRepository) SearchByName(_ context.Context, clinicID, fragment string, limit int) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Patient
	for _, p := range m.patients {
		if p.ClinicID != clinicID || !textnorm.Contains(p.Name, fragment) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListRecent(_ context.Context, clinicID string, limit int) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Patient
	for i := len(m.patients) - 1; i >= 0; i-- {
		if m.patients[i].ClinicID != clinicID {
			continue
		}
		out = append(out, m.patients[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) Count(_ context.Context, clinicID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.patients {
		if p.ClinicID == clinicID {
			n++
		}
	}
	return n, nil
}
