package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSetupMetricsExposesAssistantCollectors(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveInbound("telegram", "accepted")
	m.ObserveCommand("kasa", "ok")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"go_goroutines", "transport=\"telegram\"", "command=\"kasa\""} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
