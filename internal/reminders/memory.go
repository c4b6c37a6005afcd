package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	rules []Rule
	logs  []Log
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) CreateRule(_ context.Context, r *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.rules = append(m.rules, *r)
	return nil
}

func (m *MemoryRepository) UpdateRule(_ context.Context, r *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.rules {
		if existing.ClinicID == r.ClinicID && existing.ID == r.ID {
			r.CreatedAt = existing.CreatedAt
			m.rules[i] = *r
			return nil
		}
	}
	return ErrRuleNotFound
}

func (m *MemoryRepository) ListRules(_ context.Context, clinicID string) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Rule
	for _, r := range m.rules {
		if r.ClinicID == clinicID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRepository) CreateLog(_ context.Context, l *Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *MemoryRepository) ListLogsSince(_ context.Context, clinicID string, since time.Time) ([]Log, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Log
	for _, l := range m.logs {
		if l.ClinicID == clinicID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}
