package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/security"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	minPasswordLength         = 8
)

// Service defines the behavior needed by the auth controller and token service.
type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserView, error)
	Verify(ctx context.Context, req VerifyRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*UserView, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo        Repository
	passwordCfg config.PasswordConfig
	verifyPool  *semaphore.Weighted
	dummyHash   string
}

// ServiceParams bundles the dependencies required to build a credentials service.
type ServiceParams struct {
	Repo           Repository
	PasswordConfig config.PasswordConfig
}

// NewService constructs a credentials service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("credentials repository is required")
	}

	poolSize := params.PasswordConfig.VerifyPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	// Hashing a throwaway value gives unknown usernames the same verify cost
	// as known ones.
	dummyHash, err := security.HashPassword(uuid.NewString(), params.PasswordConfig)
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}

	return &service{
		repo:        params.Repo,
		passwordCfg: params.PasswordConfig,
		verifyPool:  semaphore.NewWeighted(int64(poolSize)),
		dummyHash:   dummyHash,
	}, nil
}

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*UserView, error) {
	username := normalizeUsername(req.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []enums.Role{enums.RoleCustomer}
	}
	stored := make(pq.StringArray, 0, len(roles))
	for _, role := range roles {
		if !role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
		}
		stored = append(stored, string(role))
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Roles:        stored,
		Active:       true,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return FromModel(created), nil
}

// Verify checks the credential pair and returns the stored user on success.
// Failures are uniform: wrong password, unknown username, and deactivated
// accounts are indistinguishable to the caller.
func (s *service) Verify(ctx context.Context, req VerifyRequest) (*models.User, error) {
	username := normalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if err := s.verifyPool.Acquire(ctx, 1); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire verify slot")
	}
	defer s.verifyPool.Release(1)

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// burn the same hashing work before rejecting
			_, _ = security.VerifyPassword(req.Password, s.dummyHash)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*UserView, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	return FromModel(user), nil
}

// Deactivate flips the account off. Repeated calls are no-ops.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate user")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
