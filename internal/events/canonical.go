package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// CanonicalEvent represents a versioned domain event.
type CanonicalEvent interface {
	EventType() string
}

var (
	errMissingClinic = errors.New("events: clinic id is required")
	errNilEvent      = errors.New("events: canonical event required")
)

// Execer is satisfied by pgx pools, connections and transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func encode(clinicID string, evt CanonicalEvent) (string, []byte, error) {
	if strings.TrimSpace(clinicID) == "" {
		return "", nil, errMissingClinic
	}
	if evt == nil {
		return "", nil, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return "", nil, fmt.Errorf("events: event type missing")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	return eventType, payload, nil
}

// AppendCanonicalEvent writes evt to the outbox through exec. Passing a
// transaction makes the event commit or roll back with the caller's writes.
func AppendCanonicalEvent(ctx context.Context, exec Execer, clinicID string, evt CanonicalEvent) (uuid.UUID, error) {
	if exec == nil {
		return uuid.Nil, fmt.Errorf("events: exec required")
	}
	eventType, payload, err := encode(clinicID, evt)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, clinic_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.Exec(ctx, query, id, clinicID, eventType, payload); err != nil {
		return uuid.Nil, fmt.Errorf("events: append canonical event: %w", err)
	}
	return id, nil
}
