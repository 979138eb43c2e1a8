package credentials

import (
	"time"

	"github.com/google/uuid"
	"github.com/vendaslabs/orders-backend/pkg/db/models"
	"github.com/vendaslabs/orders-backend/pkg/enums"
)

// CreateUserRequest carries the inputs for registering an identity.
type CreateUserRequest struct {
	Username string
	Password string
	Roles    []enums.Role
}

// VerifyRequest carries a credential pair for verification.
type VerifyRequest struct {
	Username string
	Password string
}

// UserView is the safe projection of a user returned by the service. The
// password hash never leaves this package.
type UserView struct {
	ID        uuid.UUID    `json:"id"`
	Username  string       `json:"username"`
	Roles     []enums.Role `json:"roles"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

// FromModel converts a stored user into its public projection.
func FromModel(user *models.User) *UserView {
	if user == nil {
		return nil
	}
	roles := make([]enums.Role, 0, len(user.Roles))
	for _, raw := range user.Roles {
		role, err := enums.ParseRole(raw)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}
	return &UserView{
		ID:        user.ID,
		Username:  user.Username,
		Roles:     roles,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}
}
