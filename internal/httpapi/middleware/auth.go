package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Keys holds the API keys accepted by the read (Public) and write (Admin)
// routes. Admin keys also pass read checks.
type Keys struct {
	Public []string
	Admin  []string
}

type access int

const (
	accessNone access = iota
	accessPublic
	accessAdmin
)

func (k Keys) enabled() bool { return len(k.Public) > 0 || len(k.Admin) > 0 }

func (k Keys) access(r *http.Request) access {
	given := presentedKey(r)
	if given == "" {
		return accessNone
	}
	if match(given, k.Admin) {
		return accessAdmin
	}
	if match(given, k.Public) {
		return accessPublic
	}
	return accessNone
}

// presentedKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func presentedKey(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func match(given string, set []string) bool {
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

func deny(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="ncvz"`)
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + strings.ToLower(http.StatusText(code)) + `"}`))
}

// RequireAny lets through requests carrying a public or admin key.
// With no keys configured at all every request passes (local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !keys.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.access(r) == accessNone {
				deny(w, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets through admin keys: 401 without a valid key, 403
// for a public one. With no keys configured every request passes.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !keys.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch keys.access(r) {
			case accessAdmin:
				next.ServeHTTP(w, r)
			case accessPublic:
				deny(w, http.StatusForbidden)
			default:
				deny(w, http.StatusUnauthorized)
			}
		})
	}
}
