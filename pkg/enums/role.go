package enums

import (
	"fmt"
	"strings"
)

// Role is a capability tag attached to a user and carried in token claims.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleOperator, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes and validates a role string.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role %q", value)
	}
	return role, nil
}
