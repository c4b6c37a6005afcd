package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	ClinicID  string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// Store is the read side of the outbox used by the Deliverer.
type Store interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

type outboxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	db outboxDB
}

func NewOutboxStore(db outboxDB) *OutboxStore {
	if db == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Append(ctx context.Context, clinicID string, evt CanonicalEvent) (uuid.UUID, error) {
	return AppendCanonicalEvent(ctx, s.db, clinicID, evt)
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, clinic_id, type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.ClinicID, &entry.Type, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MemoryOutbox is an in-process outbox used with the memory repositories.
type MemoryOutbox struct {
	mu        sync.Mutex
	entries   []OutboxEntry
	delivered map[uuid.UUID]bool
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{delivered: map[uuid.UUID]bool{}}
}

func (m *MemoryOutbox) Append(_ context.Context, clinicID string, evt CanonicalEvent) (uuid.UUID, error) {
	eventType, payload, err := encode(clinicID, evt)
	if err != nil {
		return uuid.Nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := OutboxEntry{ID: uuid.New(), ClinicID: clinicID, Type: eventType, Payload: payload, CreatedAt: time.Now().UTC()}
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *MemoryOutbox) FetchPending(_ context.Context, limit int32) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutboxEntry
	for _, e := range m.entries {
		if m.delivered[e.ID] {
			continue
		}
		out = append(out, e)
		if limit > 0 && int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryOutbox) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delivered[id] {
		return false, nil
	}
	m.delivered[id] = true
	return true, nil
}

// Entries returns a copy of every appended entry.
func (m *MemoryOutbox) Entries() []OutboxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboxEntry(nil), m.entries...)
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     Store
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store Store, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch of pending entries. Failed entries stay pending.
func (d *Deliverer) Drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
}
