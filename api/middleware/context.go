package middleware

import (
	"context"

	"github.com/google/uuid"
	pkgauth "github.com/vendaslabs/orders-backend/pkg/auth"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

type contextKey string

const ctxClaims contextKey = "claims"

// ClaimsFromContext returns the verified token claims seeded by Auth.
func ClaimsFromContext(ctx context.Context) *pkgauth.Claims {
	if ctx == nil {
		return nil
	}
	if claims, ok := ctx.Value(ctxClaims).(*pkgauth.Claims); ok {
		return claims
	}
	return nil
}

// UserIDFromContext returns the authenticated user id, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}

// HasRole reports whether the authenticated user carries the capability tag.
func HasRole(ctx context.Context, role enums.Role) bool {
	return ClaimsFromContext(ctx).HasRole(role)
}

// WithClaims injects verified claims into the context.
func WithClaims(ctx context.Context, claims *pkgauth.Claims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClaims, claims)
}
