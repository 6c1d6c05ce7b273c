package auth

import (
	"fmt"
	"net/http"

	"train-station/internal/apperr"
	"train-station/internal/logger"
	"train-station/internal/utils"
)

// Middleware resolves the bearer token, if any, into a Principal on the
// request context. Requests without a token continue anonymously; requests
// with a bad token are rejected.
func Middleware(tokens *TokenManager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("BAD_AUTH_HEADER", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, fmt.Errorf("%v: %w", err, apperr.ErrUnauthenticated))
				return
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := tokens.ParseAccess(raw)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
