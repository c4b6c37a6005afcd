// Package audit keeps an append-only trail of what the assistant did with
// each inbound text.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventType names the kind of assistant activity recorded.
type EventType string

const (
	// EventActionDispatched is logged for every classified message that went
	// through the dispatcher, successful or not.
	EventActionDispatched EventType = "assistant.action_dispatched"
	// EventCommandRouted is logged for every slash command.
	EventCommandRouted EventType = "assistant.command_routed"
	// EventAgentToolCalled is logged for each tool the /sor agent invoked.
	EventAgentToolCalled EventType = "assistant.agent_tool_called"
	// EventReminderBatch is logged after a reminder send-all run.
	EventReminderBatch EventType = "assistant.reminder_batch"
)

// Event represents an immutable audit record.
type Event struct {
	ID           string          `json:"id"`
	EventType    EventType       `json:"event_type"`
	ClinicID     string          `json:"clinic_id"`
	Kind         string          `json:"kind,omitempty"`
	Success      bool            `json:"success"`
	RecordID     string          `json:"record_id,omitempty"`
	PatientIsNew bool            `json:"patient_is_new,omitempty"`
	OriginalText string          `json:"original_text,omitempty"`
	Reply        string          `json:"reply,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Recorder appends audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Service writes audit events through database/sql.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}
	if event.Tags == nil {
		event.Tags = []string{}
	}
}

// Record appends one event.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ClinicID == "" {
		return fmt.Errorf("audit: clinic id required")
	}
	prepare(&event)

	query := `
		INSERT INTO assistant_audit_events (
			id, event_type, clinic_id, kind, success, record_id,
			patient_is_new, original_text, reply, tags, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.ClinicID,
		nullString(event.Kind),
		event.Success,
		nullString(event.RecordID),
		event.PatientIsNew,
		nullString(event.OriginalText),
		nullString(event.Reply),
		pq.Array(event.Tags),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// Filter specifies criteria for querying audit events.
type Filter struct {
	ClinicID  string
	EventType EventType
	Kind      string
	Tag       string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit events, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, clinic_id, kind, success, record_id,
			   patient_is_new, original_text, reply, tags, details, created_at
		FROM assistant_audit_events
		WHERE clinic_id = $1
	`
	args := []any{filter.ClinicID}
	argIdx := 2

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argIdx)
		args = append(args, filter.Tag)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d", limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind, recordID, original, reply sql.NullString
		var details []byte
		if err := rows.Scan(
			&e.ID, &e.EventType, &e.ClinicID, &kind, &e.Success, &recordID,
			&e.PatientIsNew, &original, &reply, pq.Array(&e.Tags), &details, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Kind = kind.String
		e.RecordID = recordID.String
		e.OriginalText = original.String
		e.Reply = reply.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// MemoryRecorder keeps events in process. Used by the in-memory runtime and
// tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, event Event) error {
	if event.ClinicID == "" {
		return fmt.Errorf("audit: clinic id required")
	}
	prepare(&event)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Query mirrors Service.Query for the filters that matter in memory.
func (m *MemoryRecorder) Query(_ context.Context, filter Filter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.ClinicID != filter.ClinicID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		out = append(out, e)
		if len(out) == limitOrDefault(filter.Limit) {
			break
		}
	}
	return out, nil
}

// Events returns a copy of every recorded event in insertion order.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
