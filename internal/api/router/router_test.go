package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erdincayar/klinik-asistan-sub000/internal/http/middleware"
	"github.com/erdincayar/klinik-asistan-sub000/internal/messaging"
	"github.com/erdincayar/klinik-asistan-sub000/internal/observability/metrics"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type staticChats map[string]string

func (s staticChats) ClinicForChat(_ context.Context, chatID string) (string, bool, error) {
	id, ok := s[chatID]
	return id, ok, nil
}

func newTestRouter(t *testing.T, secret string) (http.Handler, *patients.MemoryRepository) {
	t.Helper()

	logger := logging.Discard()
	repo := patients.NewMemoryRepository()
	reg := prometheus.NewRegistry()
	metrics.NewAssistantMetrics(reg)

	cfg := &Config{
		Logger:          logger,
		Patients:        patients.NewHandler(repo, logger),
		TelegramWebhook: messaging.NewWebhookHandler(messaging.WebhookDeps{Publisher: messaging.NewPublisher(messaging.NewMemoryQueue(4)), Chats: staticChats{}, Logger: logger}),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret: secret,
	}
	return New(cfg), repo
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterRequiresClinic(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d without clinic, got %d", http.StatusBadRequest, rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":"Ayşe Yılmaz"}`))
	req.Header.Set(tenancy.HeaderClinicID, "c1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestRouterTokenClinicWinsOverHeader(t *testing.T) {
	router, repo := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":"Mehmet Kaya"}`))
	req.Header.Set(tenancy.HeaderClinicID, "other")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without token, got %d", http.StatusUnauthorized, rr.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AdminClaims{
		ClinicID:         "c1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":"Mehmet Kaya"}`))
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set(tenancy.HeaderClinicID, "other")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	if n, _ := repo.Count(req.Context(), "c1"); n != 1 {
		t.Fatalf("expected patient under token clinic, got %d", n)
	}
	if n, _ := repo.Count(req.Context(), "other"); n != 0 {
		t.Fatalf("expected no patient under header clinic, got %d", n)
	}
}

func TestRouterTelegramWebhookMounted(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(`{"update_id":1}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}
