// Package account defines the user entity referenced by audit fields.
package account

import (
	"strings"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
)

// User is an acting principal. Audit fields on every entity reference a
// user id; login and registration live in the auth service.
type User struct {
	entity.Base

	Email        string `db:"email" json:"email"`
	DisplayName  string `db:"display_name" json:"displayName"`
	PasswordHash string `db:"password_hash" json:"-"`
	IsAdmin      bool   `db:"is_admin" json:"isAdmin"`
}

// RoleNames derives the role list carried in access tokens.
func (u *User) RoleNames() []string {
	if u.IsAdmin {
		return []string{"admin"}
	}
	return []string{"editor"}
}

// Validate checks user invariants.
func (u *User) Validate() error {
	if !strings.Contains(u.Email, "@") {
		return apperror.NewValidation("valid email is required").WithDetail("field", "email")
	}
	if strings.TrimSpace(u.DisplayName) == "" {
		return apperror.NewValidation("display name is required").WithDetail("field", "displayName")
	}
	return nil
}
