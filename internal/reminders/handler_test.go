package reminders

import (
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

func newReminderRouter(f fixture) http.Handler {
	prefs := func(*http.Request, string) Preferences { return Preferences{ClinicName: "Işıl Klinik"} }
	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/reminders", NewHandler(f.svc, prefs, logging.Discard()).RegisterRoutes)
	return r
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerDueAndSend(t *testing.T) {
	f := newFixture(t)
	router := newReminderRouter(f)

	rec := call(t, router, http.MethodGet, "/api/reminders/due", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"count":3`)

	rec = call(t, router, http.MethodPost, "/api/reminders/send", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tally Tally
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tally))
	assert.Equal(t, 2, tally.Sent)
	assert.Equal(t, 1, tally.Failed)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "Işıl Klinik - Randevu hatırlatması", f.mailer.sent[0].Subject)
}

func TestHandlerSavesRules(t *testing.T) {
	f := newFixture(t)
	router := newReminderRouter(f)

	rec := call(t, router, http.MethodPost, "/api/reminders/rules", `{"treatment_category":"dolgu","interval_days":180}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rule Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	assert.True(t, rule.Active)

	rec = call(t, router, http.MethodPut, "/api/reminders/rules/"+rule.ID, `{"treatment_category":"DOLGU","interval_days":200,"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, router, http.MethodPut, "/api/reminders/rules/missing", `{"treatment_category":"DOLGU","interval_days":200}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, router, http.MethodPost, "/api/reminders/rules", `{"treatment_category":"DOLGU","interval_days":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, router, http.MethodGet, "/api/reminders/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"interval_days":200`)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)
}
