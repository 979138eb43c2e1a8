package middleware

import (
	"net/http"
	"strings"

	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/internal/token"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/logger"
)

// Auth validates a bearer access token and seeds the request context with the
// verified claims. Verification is stateless; no store call happens here.
func Auth(tokens token.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			bearer := raw
			if strings.HasPrefix(strings.ToLower(bearer), "bearer ") {
				bearer = strings.TrimSpace(bearer[7:])
			}
			if bearer == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := tokens.VerifyAccess(r.Context(), bearer)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
