package tenancy

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const clinicKey ctxKey = "klinik.clinic_id"

// HeaderClinicID carries the clinic id on API requests.
const HeaderClinicID = "X-Clinic-Id"

// WithClinicID stores the clinic id in context.
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicKey, clinicID)
}

// ClinicIDFromContext extracts the clinic id if present.
func ClinicIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(clinicKey)
	if val == nil {
		return "", false
	}
	clinicID, ok := val.(string)
	return clinicID, ok && clinicID != ""
}

// RequireClinic rejects requests that carry no clinic identity. A clinic id
// already placed in context (by the JWT middleware) wins over the header.
func RequireClinic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClinicIDFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		clinicID := strings.TrimSpace(r.Header.Get(HeaderClinicID))
		if clinicID == "" {
			http.Error(w, `{"error":"clinic id required"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClinicID(r.Context(), clinicID)))
	})
}
