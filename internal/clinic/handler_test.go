package clinic

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

func newClinicRouter(t *testing.T) (http.Handler, *Store) {
	store, _ := newTestStore(t)
	h := NewHandler(NewCachedStore(store, 0), logging.Discard())
	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/clinic", h.RegisterRoutes)
	return r, store
}

func call(h http.Handler, method, path, clinicID, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(tenancy.HeaderClinicID, clinicID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerGetConfigDefaults(t *testing.T) {
	router, _ := newClinicRouter(t)

	rec := call(router, http.MethodGet, "/api/clinic/config", "c1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "c1", cfg.ClinicID)
	assert.Equal(t, DefaultTimezone, cfg.Timezone)
}

func TestHandlerUpdateConfig(t *testing.T) {
	router, store := newClinicRouter(t)

	rec := call(router, http.MethodPut, "/api/clinic/config", "c1",
		`{"name":"Gül Klinik","timezone":"UTC","owner_email":"sahip@example.com","reminder_auto_send":true,"reminder_tone":"resmi","default_appointment_minutes":45}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cfg, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Gül Klinik", cfg.Name)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "sahip@example.com", cfg.OwnerEmail)
	assert.Equal(t, 45, cfg.DefaultAppointmentMinutes)
	assert.True(t, cfg.ReminderAutoSend)

	// partial update keeps other fields
	rec = call(router, http.MethodPut, "/api/clinic/config", "c1", `{"reminder_auto_send":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg, err = store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, cfg.ReminderAutoSend)
	assert.Equal(t, "Gül Klinik", cfg.Name)
}

func TestHandlerUpdateConfigRejectsBadInput(t *testing.T) {
	router, _ := newClinicRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"name":`},
		{"unknown field", `{"nope":1}`},
		{"bad email", `{"owner_email":"not-an-email"}`},
		{"bad tone", `{"reminder_tone":"neşeli"}`},
		{"bad timezone", `{"timezone":"Mars/Olympus"}`},
		{"too short", `{"default_appointment_minutes":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(router, http.MethodPut, "/api/clinic/config", "c1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerChatBinding(t *testing.T) {
	router, store := newClinicRouter(t)

	rec := call(router, http.MethodPost, "/api/clinic/chats", "c1", `{"chat_id":"555"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	clinicID, ok, err := store.ClinicForChat(context.Background(), "555")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c1", clinicID)

	// another clinic cannot unbind it
	rec = call(router, http.MethodDelete, "/api/clinic/chats/555", "c2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(router, http.MethodDelete, "/api/clinic/chats/555", "c1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok, err = store.ClinicForChat(context.Background(), "555")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandlerBindPatientChat(t *testing.T) {
	router, store := newClinicRouter(t)

	rec := call(router, http.MethodPost, "/api/clinic/patient-chats", "c1", `{"phone":"0532 000 11 22","chat_id":"900"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"phone":"905320001122"`)

	chatID, ok, err := store.ChatForPhone(context.Background(), "c1", "05320001122")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "900", chatID)

	rec = call(router, http.MethodPost, "/api/clinic/patient-chats", "c1", `{"phone":"---","chat_id":"900"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
