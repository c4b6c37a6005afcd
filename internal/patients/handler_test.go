package patients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func newTestRouter(repo Repository) http.Handler {
	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/patients", NewHandler(repo, logging.Discard()).RegisterRoutes)
	return r
}

func TestHandlerCreateAndSearch(t *testing.T) {
	repo := NewMemoryRepository()
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":"Elif Şahin","phone":"05551112233"}`))
	req.Header.Set(tenancy.HeaderClinicID, "clinic-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "clinic-1", created.ClinicID)

	req = httptest.NewRequest(http.MethodGet, "/api/patients?q=sahin", nil)
	req.Header.Set(tenancy.HeaderClinicID, "clinic-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	req = httptest.NewRequest(http.MethodGet, "/api/patients/"+created.ID, nil)
	req.Header.Set(tenancy.HeaderClinicID, "clinic-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/patients/"+created.ID, nil)
	req.Header.Set(tenancy.HeaderClinicID, "other-clinic")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateValidates(t *testing.T) {
	router := newTestRouter(NewMemoryRepository())

	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":"","email":"not-an-email"}`))
	req.Header.Set(tenancy.HeaderClinicID, "clinic-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListRecent(t *testing.T) {
	repo := NewMemoryRepository()
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, repo.Create(context.Background(), &Patient{ClinicID: "clinic-1", Name: name}))
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set(tenancy.HeaderClinicID, "clinic-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload struct {
		Patients []Patient `json:"patients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Patients, 3)
	assert.Equal(t, "C", payload.Patients[0].Name)
}
