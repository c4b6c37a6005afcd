package middleware

import (
	"net/http"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
)

// HeaderRequestID carries the request id echoed by RequestLogger.
const HeaderRequestID = "X-Request-ID"

var (
	corsAllowedHeaders = strings.Join([]string{"Authorization", "Content-Type", tenancy.HeaderClinicID, HeaderRequestID}, ", ")
	corsAllowedMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", ")
)

// originPolicy matches browser origins against CORS_ALLOWED_ORIGINS.
// Entries are exact origins, "*", or "https://*.example.com" for any
// subdomain of example.com over https.
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	wildcard []string
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			p.wildcard = append(p.wildcard, scheme+"://|"+strings.ToLower(host))
		default:
			p.exact[strings.ToLower(origin)] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.any {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, w := range p.wildcard {
		prefix, suffix, _ := strings.Cut(w, "|")
		host, ok := strings.CutPrefix(origin, prefix)
		if ok && strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// CORS lets the clinic dashboard call the API from the listed origins.
// Allowed origins may send the clinic header and read the request id of
// every response. Preflights from other origins are refused with 403.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			allowed := policy.allows(origin)
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
				w.Header().Set("Access-Control-Expose-Headers", HeaderRequestID)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
