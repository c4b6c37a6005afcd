package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
)

func TestAdminJWTMissingSecret(t *testing.T) {
	mw := AdminJWT("")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	mw := AdminJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTInvalidToken(t *testing.T) {
	mw := AdminJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "wrong"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	mw := AdminJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret"))
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("expected admin claims in context")
		}
		if claims.ClinicID != "clinic-1" {
			t.Fatalf("expected clinic claim, got %q", claims.ClinicID)
		}
		if clinicID, _ := tenancy.ClinicIDFromContext(r.Context()); clinicID != "clinic-1" {
			t.Fatalf("expected clinic id in tenancy context, got %q", clinicID)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedAdminToken(t *testing.T, secret string) string {
	t.Helper()
	claims := AdminClaims{
		ClinicID: "clinic-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminJWTClaimOverridesHeader(t *testing.T) {
	handler := tenancy.RequireClinic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
		_, _ = w.Write([]byte(clinicID))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret"))
	req.Header.Set(tenancy.HeaderClinicID, "someone-else")
	rec := httptest.NewRecorder()

	AdminJWT("secret")(handler).ServeHTTP(rec, req)

	if rec.Body.String() != "clinic-1" {
		t.Fatalf("expected claim clinic, got %q", rec.Body.String())
	}
}
