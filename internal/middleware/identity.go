package middleware

import (
	"net/http"
	"strings"

	"github.com/lsurma/data-manager/internal/auth"
)

const identityHeader = "X-Identity"

// IdentityMiddleware lifts the caller identity header into the request
// context for the authorization gate. Absent or blank headers leave the
// request anonymous.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.Header.Get(identityHeader))
		if identity != "" {
			r = r.WithContext(auth.ContextWithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}
