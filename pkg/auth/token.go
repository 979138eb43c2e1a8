package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintToken issues a signed JWT for the provided payload with the given TTL.
func MintToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload TokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	if !payload.Kind.IsValid() {
		return "", fmt.Errorf("invalid token kind %q", payload.Kind)
	}
	for _, role := range payload.Roles {
		if !role.IsValid() {
			return "", fmt.Errorf("invalid role %q", role)
		}
	}

	issuedAt := jwt.NewNumericDate(now)
	expiry := jwt.NewNumericDate(now.Add(ttl))

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := Claims{
		UserID: payload.UserID,
		Roles:  payload.Roles,
		Kind:   payload.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  issuedAt,
			ExpiresAt: expiry,
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseToken validates the JWT string and returns typed claims. During key
// rotation the previous secret remains valid for its overlap window, so
// verification is attempted against both keys.
func ParseToken(cfg config.JWTConfig, tokenString string) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims, err := parseWithKey(cfg, tokenString, cfg.Secret)
	if err == nil {
		return claims, nil
	}
	if cfg.PreviousSecret != "" && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		if claims, prevErr := parseWithKey(cfg, tokenString, cfg.PreviousSecret); prevErr == nil {
			return claims, nil
		}
	}
	return nil, err
}

func parseWithKey(cfg config.JWTConfig, tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// NewJTI produces a collision-resistant token identifier.
func NewJTI() string {
	return uuid.NewString()
}

// KindOf is a convenience guard used by the token service.
func KindOf(claims *Claims) enums.TokenKind {
	if claims == nil {
		return ""
	}
	return claims.Kind
}
