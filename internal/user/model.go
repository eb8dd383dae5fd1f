package user

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role read from storage, token claims or the CLI
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCitizen, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsAdmin reports whether the role grants administrative access
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser holds the fields required to create an account
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsVerified   bool
}
