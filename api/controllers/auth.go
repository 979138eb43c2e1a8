package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/api/middleware"
	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/api/validators"
	"github.com/vendaslabs/orders-backend/internal/credentials"
	"github.com/vendaslabs/orders-backend/internal/token"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/logger"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthRegister creates a customer identity. Capability tags beyond customer
// are granted through the admin user endpoints only.
func AuthRegister(creds credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := creds.CreateUser(r.Context(), credentials.CreateUserRequest{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

// AuthLogin verifies credentials and issues an access/refresh pair.
func AuthLogin(creds credentials.Service, tokens token.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := creds.Verify(r.Context(), credentials.VerifyRequest{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := tokens.IssuePair(r.Context(), user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

// AuthRefresh rotates a refresh token into a fresh pair. The presented token
// is revoked even when it is about to expire.
func AuthRefresh(tokens token.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := tokens.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

// AuthLogout revokes the presented refresh token. Revoking an already-revoked
// token succeeds.
func AuthLogout(tokens token.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// Me returns the authenticated user's profile.
func Me(creds credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		user, err := creds.GetUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

type createUserRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=64"`
	Password string   `json:"password" validate:"required,min=8,max=128"`
	Roles    []string `json:"roles" validate:"omitempty,dive,required"`
}

// AdminCreateUser registers an identity with explicit capability tags.
func AdminCreateUser(creds credentials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		roles := make([]enums.Role, 0, len(req.Roles))
		for _, raw := range req.Roles {
			role, err := enums.ParseRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown role").WithDetails(map[string]any{"role": raw}))
				return
			}
			roles = append(roles, role)
		}

		user, err := creds.CreateUser(r.Context(), credentials.CreateUserRequest{
			Username: req.Username,
			Password: req.Password,
			Roles:    roles,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

// AdminDeactivateUser soft-deactivates an identity and revokes its refresh
// tokens. Outstanding access tokens expire on their own.
func AdminDeactivateUser(creds credentials.Service, tokens token.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := creds.Deactivate(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := tokens.RevokeAllForUser(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
