package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgauth "github.com/vendaslabs/orders-backend/pkg/auth"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"gorm.io/gorm"
)

const invalidTokenMessage = "invalid or expired token"

// Service issues, verifies, rotates, and revokes token pairs. The refresh
// half is persisted so it can be revoked; the access half expires on its own.
type Service interface {
	IssuePair(ctx context.Context, user *models.User) (*Pair, error)
	VerifyAccess(ctx context.Context, tokenString string) (*pkgauth.Claims, error)
	Refresh(ctx context.Context, refreshToken string) (*Pair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type service struct {
	repo   Repository
	jwtCfg config.JWTConfig
	now    func() time.Time
}

// ServiceParams bundles the dependencies required to build a token service.
type ServiceParams struct {
	Repo      Repository
	JWTConfig config.JWTConfig

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewService constructs a token service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("refresh token repository is required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if params.JWTConfig.AccessTokenTTL() <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	if params.JWTConfig.RefreshTokenTTL() <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:   params.Repo,
		jwtCfg: params.JWTConfig,
		now:    now,
	}, nil
}

func (s *service) IssuePair(ctx context.Context, user *models.User) (*Pair, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user is required")
	}

	roles := make([]enums.Role, 0, len(user.Roles))
	for _, raw := range user.Roles {
		role, err := enums.ParseRole(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored role invalid")
		}
		roles = append(roles, role)
	}

	return s.mintPair(ctx, user.ID, roles)
}

func (s *service) mintPair(ctx context.Context, userID uuid.UUID, roles []enums.Role) (*Pair, error) {
	now := s.now()
	accessTTL := s.jwtCfg.AccessTokenTTL()
	refreshTTL := s.jwtCfg.RefreshTokenTTL()

	access, err := pkgauth.MintToken(s.jwtCfg, now, accessTTL, pkgauth.TokenPayload{
		UserID: userID,
		Roles:  roles,
		Kind:   enums.TokenKindAccess,
		JTI:    pkgauth.NewJTI(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	refreshJTI := pkgauth.NewJTI()
	refresh, err := pkgauth.MintToken(s.jwtCfg, now, refreshTTL, pkgauth.TokenPayload{
		UserID: userID,
		Roles:  roles,
		Kind:   enums.TokenKindRefresh,
		JTI:    refreshJTI,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint refresh token")
	}

	record := &models.RefreshToken{
		JTI:       refreshJTI,
		Subject:   userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(refreshTTL),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist refresh token")
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates an access token without touching storage. Revoking a
// refresh token does not recall access tokens already in flight; they age out
// within the access TTL.
func (s *service) VerifyAccess(_ context.Context, tokenString string) (*pkgauth.Claims, error) {
	claims, err := pkgauth.ParseToken(s.jwtCfg, tokenString)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}
	if claims.Kind != enums.TokenKindAccess {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}
	return claims, nil
}

// Refresh rotates the pair: the presented refresh token is revoked and a new
// pair is issued. A revoked or unknown refresh token is rejected uniformly.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Revoke(ctx, claims.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke rotated token")
	}

	return s.mintPair(ctx, claims.UserID, claims.Roles)
}

// Revoke marks the presented refresh token revoked. Revoking an already
// revoked token succeeds without error.
func (s *service) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := pkgauth.ParseToken(s.jwtCfg, refreshToken)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}
	if claims.Kind != enums.TokenKindRefresh {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}

	if _, err := s.repo.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke refresh token")
	}
	return nil
}

// RevokeAllForUser invalidates every live refresh token of the user. Used when
// an account is deactivated.
func (s *service) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.RevokeAllForSubject(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke user tokens")
	}
	return nil
}

// PurgeExpired removes refresh rows whose expiry has passed. Revocation state
// for expired tokens is irrelevant; the signature check already rejects them.
func (s *service) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge expired tokens")
	}
	return deleted, nil
}

func (s *service) verifyRefresh(ctx context.Context, tokenString string) (*pkgauth.Claims, error) {
	claims, err := pkgauth.ParseToken(s.jwtCfg, tokenString)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}
	if claims.Kind != enums.TokenKindRefresh {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}

	record, err := s.repo.FindByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup refresh token")
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}
	return claims, nil
}
