package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type brokenQuerier struct{}

func (brokenQuerier) Query(context.Context, Filter) ([]Event, error) {
	return nil, errors.New("db down")
}

func serveAudit(q Querier, clinicID, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/audit", NewHandler(q, logging.Discard()).RegisterRoutes)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if clinicID != "" {
		req.Header.Set(tenancy.HeaderClinicID, clinicID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListsClinicEvents(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, Event{EventType: EventActionDispatched, ClinicID: "c1", Kind: "EXPENSE", Success: true}))
	require.NoError(t, rec.Record(ctx, Event{EventType: EventCommandRouted, ClinicID: "c1", Kind: "kasa", Success: true}))
	require.NoError(t, rec.Record(ctx, Event{EventType: EventActionDispatched, ClinicID: "c2", Kind: "EXPENSE"}))

	res := serveAudit(rec, "c1", "/api/audit?type=assistant.action_dispatched")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body struct {
		Events []Event `json:"events"`
		Count  int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "EXPENSE", body.Events[0].Kind)
	assert.Equal(t, "c1", body.Events[0].ClinicID)

	res = serveAudit(rec, "c3", "/api/audit")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"events":[],"count":0}`, res.Body.String())
}

func TestHandlerErrors(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, serveAudit(NewMemoryRecorder(), "", "/api/audit").Code)
	assert.Equal(t, http.StatusInternalServerError, serveAudit(brokenQuerier{}, "c1", "/api/audit").Code)
}
