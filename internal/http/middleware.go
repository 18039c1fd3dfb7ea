package http

import (
	"net/http"

	"budget/internal/auth"
	"budget/internal/log"
)

// Authenticator validates an Authorization header. *auth.Service implements it.
type Authenticator interface {
	Authenticate(header string) (*auth.Claims, error)
}

// requireAuth rejects requests without a valid bearer token and stores the
// decoded claims in the request context.
func requireAuth(a Authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, log.OpAuthenticate, err)
			return
		}
		ctx := auth.WithClaims(r.Context(), claims)
		logger := log.FromContext(ctx).With(log.FieldUserID, claims.UserID, log.FieldUsername, claims.Username)
		next(w, r.WithContext(log.IntoContext(ctx, logger)))
	}
}

// chain applies middleware so the first one listed runs outermost.
func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
