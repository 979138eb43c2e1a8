package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

// TokenPayload captures the data available when minting a token.
type TokenPayload struct {
	UserID uuid.UUID
	Roles  []enums.Role
	Kind   enums.TokenKind
	JTI    string
}

// Claims is the typed JWT payload issued to clients. Kind distinguishes
// access tokens from refresh tokens signed with the same key.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Roles  []enums.Role    `json:"roles"`
	Kind   enums.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry the given capability tag.
func (c *Claims) HasRole(role enums.Role) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
