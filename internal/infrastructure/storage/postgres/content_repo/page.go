package content_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"papyrus/internal/core/entity"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/storage/postgres"
)

// PageRepo manages CMS pages.
type PageRepo struct {
	*BaseRepo[*content.Page]
}

// Pages returns the page repository for the session, creating and caching it
// on first use.
func Pages(s *postgres.Session, reg *entity.Registry) *PageRepo {
	return s.Repository(content.TypePage, func() any {
		return &PageRepo{
			BaseRepo: New(s, reg.MustGet(content.TypePage), []string{"title", "slug"},
				func() *content.Page { return &content.Page{} }),
		}
	}).(*PageRepo)
}

// GetBySlug finds a live page by its URL slug.
func (r *PageRepo) GetBySlug(ctx context.Context, slug string) (*content.Page, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	return r.FindOne(ctx, q.Where(squirrel.Eq{"slug": slug}).Limit(1))
}

// ListPublished lists the published pages, newest first.
func (r *PageRepo) ListPublished(ctx context.Context, limit, offset int) ([]*content.Page, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	q = q.
		Where(squirrel.Eq{"published": true}).
		OrderBy("published_at DESC NULLS LAST")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pages []*content.Page
	if err := pgxscan.Select(ctx, r.s.Querier(), &pages, sql, args...); err != nil {
		return nil, fmt.Errorf("list published pages: %w", err)
	}
	return pages, nil
}

// SlugTaken reports whether a live page other than excludeID already uses the slug.
func (r *PageRepo) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	q, err := r.s.Filters().Apply(
		r.Builder().Select("1").From(r.def.Table),
		r.def.Name, r.scope,
	)
	if err != nil {
		return false, err
	}
	sql, args, err := q.
		Where(squirrel.Eq{"slug": slug}).
		Where(squirrel.NotEq{"id": excludeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.s.Querier().QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return true, nil
}
