package finance

import (
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

func newFinanceRouter() http.Handler {
	now := time.Date(2026, 1, 14, 15, 30, 0, 0, calendar.Location(""))
	resolver := patients.NewResolver(patients.NewMemoryRepository(), logging.Discard())
	h := NewHandler(NewService(NewMemoryRepository(), logging.Discard()), resolver, calendar.FixedNow(now), logging.Discard())
	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api", h.RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRecordsAndSummarizes(t *testing.T) {
	router := newFinanceRouter()

	rec := do(t, router, http.MethodPost, "/api/treatments", `{"patient_name":"Ayşe Yılmaz","category":"BOTOX","amount":600000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"patient_name":"Ayşe Yılmaz"`)

	rec = do(t, router, http.MethodPost, "/api/expenses", `{"description":"Kira","amount":2500000,"category":"KIRA","date":"dün"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/finance/summary?period=bu+ay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"income":600000`)
	assert.Contains(t, rec.Body.String(), `"expense":2500000`)
	assert.Contains(t, rec.Body.String(), `"label":"Ocak 2026"`)
}

func TestHandlerRejectsBadPayloads(t *testing.T) {
	router := newFinanceRouter()

	rec := do(t, router, http.MethodPost, "/api/expenses", `{"description":"Kira","amount":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/treatments", `{"amount":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/expenses", `{"description":"Kira","amount":100,"category":"YEMEK"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerEmployees(t *testing.T) {
	router := newFinanceRouter()

	rec := do(t, router, http.MethodPost, "/api/employees", `{"name":"Dr. Can","commission_bps":1500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/employees", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dr. Can")
}
