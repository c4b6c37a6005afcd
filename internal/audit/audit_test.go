package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func TestServiceRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewService(db)

	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "dispatched expense",
			event: Event{
				EventType:    EventActionDispatched,
				ClinicID:     "c1",
				Kind:         "EXPENSE",
				Success:      true,
				RecordID:     "exp-1",
				OriginalText: "Kira 25000 odendi",
				Tags:         []string{"chat"},
			},
		},
		{
			name: "routed command without tags",
			event: Event{
				EventType:    EventCommandRouted,
				ClinicID:     "c1",
				Kind:         "kasa",
				Success:      true,
				OriginalText: "/kasa",
				Details:      json.RawMessage(`{"duration_ms":3}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO assistant_audit_events").
				WithArgs(sqlmock.AnyArg(), tt.event.EventType, "c1", tt.event.Kind, tt.event.Success,
					sqlmock.AnyArg(), false, tt.event.OriginalText, sqlmock.AnyArg(),
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			require.NoError(t, service.Record(context.Background(), tt.event))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRecordRequiresClinic(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, NewService(db).Record(context.Background(), Event{EventType: EventCommandRouted}))
}

func TestServiceQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "clinic_id", "kind", "success", "record_id",
		"patient_is_new", "original_text", "reply", "tags", "details", "created_at",
	}).AddRow("e1", "assistant.action_dispatched", "c1", "INCOME", true, "t1",
		true, "Ayşe botoks 6000", "kaydedildi", "{chat,telegram}", []byte(`{}`), created).
		AddRow("e2", "assistant.action_dispatched", "c1", nil, false, nil,
			false, nil, nil, "{}", []byte(`{}`), created)

	mock.ExpectQuery(`SELECT (.+) FROM assistant_audit_events WHERE clinic_id = \$1 AND kind = \$2 AND \$3 = ANY\(tags\)`).
		WithArgs("c1", "INCOME", "chat").
		WillReturnRows(rows)

	events, err := NewService(db).Query(context.Background(), Filter{ClinicID: "c1", Kind: "INCOME", Tag: "chat"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "t1", events[0].RecordID)
	assert.True(t, events[0].PatientIsNew)
	assert.Equal(t, []string{"chat", "telegram"}, events[0].Tags)
	assert.Equal(t, "", events[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRecorderAndHandler(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, Event{EventType: EventCommandRouted, ClinicID: "c1", Kind: "kasa", Success: true}))
	require.NoError(t, rec.Record(ctx, Event{EventType: EventActionDispatched, ClinicID: "c1", Kind: "EXPENSE", Success: true}))
	require.NoError(t, rec.Record(ctx, Event{EventType: EventActionDispatched, ClinicID: "c2", Kind: "INCOME"}))
	assert.Error(t, rec.Record(ctx, Event{}))
	assert.Len(t, rec.Events(), 3)

	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/audit", NewHandler(rec, logging.Discard()).RegisterRoutes)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/?type=assistant.action_dispatched", nil)
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Events []Event `json:"events"`
		Count  int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "EXPENSE", body.Events[0].Kind)
}
