package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func newTestHandler(t *testing.T) (http.Handler, *patients.MemoryRepository) {
	t.Helper()
	svc, _, _ := newTestService(t)
	patientRepo := patients.NewMemoryRepository()
	resolver := patients.NewResolver(patientRepo, logging.Discard())
	// Monday 12 January 2026
	now := time.Date(2026, 1, 12, 8, 0, 0, 0, tuesday.Location())
	h := NewHandler(svc, resolver, calendar.FixedNow(now), logging.Discard())

	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/appointments", h.RegisterRoutes)
	r.Route("/api/schedule", h.RegisterScheduleRoutes)
	return r, patientRepo
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBookingFlow(t *testing.T) {
	h, patientRepo := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/api/appointments",
		`{"patient_name":"Ayşe Yılmaz","date":"yarın","start_time":"10:00","treatment_type":"BOTOX"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "10:30", created.End.String())
	assert.Equal(t, "2026-01-13", created.DayKey())

	n, err := patientRepo.Count(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec = do(t, h, http.MethodPost, "/api/appointments",
		`{"patient_name":"Mehmet","date":"2026-01-13","start_time":"10:15","end_time":"10:45"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	n, err = patientRepo.Count(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a rejected booking must not register its patient")

	rec = do(t, h, http.MethodGet, "/api/appointments/slots?date=2026-01-13", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var slotsResp struct {
		Slots     []Slot `json:"slots"`
		Available int    `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slotsResp))
	assert.Len(t, slotsResp.Slots, 18)
	assert.Equal(t, 17, slotsResp.Available)

	rec = do(t, h, http.MethodPost, "/api/appointments/"+created.ID+"/reschedule", `{"slot_index":40}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "available")

	rec = do(t, h, http.MethodPost, "/api/appointments/"+created.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CANCELLED")
}

func TestHandlerScheduleRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPut, "/api/schedule",
		`{"days":[{"weekday":2,"start_time":"10:00","end_time":"12:00","slot_duration":60,"is_active":true}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/appointments/slots?date=sal%C4%B1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":2`)

	rec = do(t, h, http.MethodPut, "/api/schedule",
		`{"days":[{"weekday":9,"start_time":"10:00","end_time":"12:00","slot_duration":60}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsUnknownDate(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, http.MethodGet, "/api/appointments?date=sonra", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsBookingsOutsideWorkingHours(t *testing.T) {
	h, patientRepo := newTestHandler(t)

	cases := map[string]string{
		"closed sunday":      `{"patient_name":"Deniz","date":"2026-01-18","start_time":"10:00"}`,
		"before opening":     `{"patient_name":"Deniz","date":"2026-01-13","start_time":"08:00"}`,
		"runs past midnight": `{"patient_name":"Deniz","date":"2026-01-13","start_time":"23:45"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/appointments", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	n, err := patientRepo.Count(context.Background(), "c1")
	require.NoError(t, err)
	assert.Zero(t, n)

	rec := do(t, h, http.MethodGet, "/api/appointments?date=2026-01-13", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"appointments":[]`)
}
