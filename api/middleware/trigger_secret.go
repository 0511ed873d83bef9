package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/goldvault-backend/api/responses"
	pkgerrors "github.com/angelmondragon/goldvault-backend/pkg/errors"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
)

const bearerPrefix = "bearer "

// TriggerSecret guards manual job triggers. Requests without an
// Authorization header pass through; a header that is present must carry
// the configured secret as a bearer token.
func TriggerSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(strings.ToLower(raw), bearerPrefix) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unauthorized"))
				return
			}
			token := []byte(strings.TrimSpace(raw[len(bearerPrefix):]))
			if len(expected) == 0 || subtle.ConstantTimeCompare(token, expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unauthorized"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
