package conversation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/commands"
	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func newAssistantServer(t *testing.T, classifier MessageClassifier) http.Handler {
	t.Helper()
	processor := NewProcessor(
		&stubRouter{result: commands.Result{IsCommand: true, Command: "yardim", Text: "yardım", Success: true}},
		&stubClassifier{result: Ambiguous{Message: "Ne demek istediniz?"}},
		newPipeline(t).dispatcher, nil, calendar.FixedNow(now), logging.Discard())
	h := NewHandler(processor, classifier, calendar.FixedNow(now), logging.Discard())

	r := chi.NewRouter()
	r.Use(tenancy.RequireClinic)
	r.Route("/api/assistant", h.RegisterRoutes)
	return r
}

func TestHandlerMessage(t *testing.T) {
	srv := newAssistantServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/messages", strings.NewReader(`{"text":"/yardim"}`))
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.True(t, reply.IsCommand)
	assert.Equal(t, "yardım", reply.Text)
}

func TestHandlerMessageRejectsBadInput(t *testing.T) {
	srv := newAssistantServer(t, nil)

	cases := map[string]struct {
		body   string
		clinic string
		status int
	}{
		"missing clinic": {body: `{"text":"merhaba"}`, status: http.StatusBadRequest},
		"empty text":     {body: `{"text":""}`, clinic: "c1", status: http.StatusBadRequest},
		"unknown field":  {body: `{"text":"a","extra":1}`, clinic: "c1", status: http.StatusBadRequest},
		"not json":       {body: `text=merhaba`, clinic: "c1", status: http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/assistant/messages", strings.NewReader(tc.body))
			if tc.clinic != "" {
				req.Header.Set(tenancy.HeaderClinicID, tc.clinic)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerClassifyDryRun(t *testing.T) {
	classifier := &stubClassifier{result: ExpenseRecord{Description: "Kira", Amount: 2500000, Category: "KIRA"}}
	srv := newAssistantServer(t, classifier)

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/classify", strings.NewReader(`{"text":"Kira 25000 odendi"}`))
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Kind   string         `json:"kind"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "EXPENSE", body.Kind)
	assert.Equal(t, []string{"Kira 25000 odendi"}, classifier.calls)
	assert.True(t, classifier.seenAt.Equal(now))
}

func TestHandlerClassifyWithoutClassifier(t *testing.T) {
	srv := newAssistantServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/assistant/classify", strings.NewReader(`{"text":"x"}`))
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
