package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Deduper records inbound webhook deliveries that were already accepted.
type Deduper interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records provider event ids in Postgres.
type ProcessedStore struct {
	db rowQuerier
}

func NewProcessedStore(db rowQuerier) *ProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{db: db}
}

// AlreadyProcessed checks if we've seen this provider event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`
	var exists int
	if err := s.db.QueryRow(ctx, query, provider, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id for the provider, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MemoryProcessedStore is a Deduper for single-process runs.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: map[string]struct{}{}}
}

func (m *MemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + ":" + eventID
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}
