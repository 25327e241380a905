// Package account_repo provides PostgreSQL repositories for account entities.
package account_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"papyrus/internal/core/entity"
	"papyrus/internal/domain/account"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/internal/infrastructure/storage/postgres/content_repo"
)

// UserRepo manages user accounts.
type UserRepo struct {
	*content_repo.BaseRepo[*account.User]
}

// Users returns the user repository for the session, creating and caching it
// on first use.
func Users(s *postgres.Session, reg *entity.Registry) *UserRepo {
	return s.Repository(account.TypeUser, func() any {
		return &UserRepo{
			BaseRepo: content_repo.New(s, reg.MustGet(account.TypeUser), []string{"email", "display_name"},
				func() *account.User { return &account.User{} }),
		}
	}).(*UserRepo)
}

// GetByEmail finds a live user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	return r.FindOne(ctx, q.Where(squirrel.Eq{"email": email}).Limit(1))
}
