// Package content_repo provides PostgreSQL repositories for the CMS entities.
//
// Repositories are bound to a unit-of-work session: reads run immediately
// through the session querier (joining its open transaction, if any), writes
// are staged on the session and flushed by SaveChanges.
package content_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/infrastructure/storage/postgres"
)

// Entity is what a repository manages: a persisted, self-validating type.
type Entity interface {
	entity.Auditable
	entity.Validatable
}

// BaseRepo provides the generic CRUD surface shared by all entity repositories.
// Embed it in specific repositories.
type BaseRepo[T Entity] struct {
	s          *postgres.Session
	def        entity.Definition
	cols       []string
	searchCols []string
	newFn      func() T
	scope      postgres.Scope
}

// New creates a base repository bound to the given session.
func New[T Entity](s *postgres.Session, def entity.Definition, searchCols []string, newFn func() T) *BaseRepo[T] {
	return &BaseRepo[T]{
		s:          s,
		def:        def,
		cols:       postgres.ExtractDBColumns[T](),
		searchCols: searchCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// IncludeDeleted returns a view of the repository that bypasses the
// soft-delete filter. Explicit opt-in; the default always excludes.
func (r *BaseRepo[T]) IncludeDeleted() *BaseRepo[T] {
	view := *r
	view.scope = postgres.ScopeIncludeDeleted
	return &view
}

// OnlyDeleted returns a view that yields only soft-deleted rows.
func (r *BaseRepo[T]) OnlyDeleted() *BaseRepo[T] {
	view := *r
	view.scope = postgres.ScopeOnlyDeleted
	return &view
}

// BaseSelect creates a SELECT builder with the soft-delete scope applied.
func (r *BaseRepo[T]) BaseSelect() (squirrel.SelectBuilder, error) {
	q := r.Builder().
		Select(r.cols...).
		From(r.def.Table)
	return r.s.Filters().Apply(q, r.def.Name, r.scope)
}

// GetByID retrieves an entity by ID.
func (r *BaseRepo[T]) GetByID(ctx context.Context, id int64) (T, error) {
	ent := r.newFn()

	q, err := r.BaseSelect()
	if err != nil {
		return ent, err
	}
	sql, args, err := q.Where(squirrel.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return ent, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.s.Querier(), ent, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ent, apperror.NewNotFound(r.def.Name, id)
		}
		return ent, fmt.Errorf("get %s by id: %w", r.def.Name, err)
	}
	return ent, nil
}

// FindOne executes a prepared SELECT and returns a single entity.
func (r *BaseRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder) (T, error) {
	ent := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return ent, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.s.Querier(), ent, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ent, apperror.NewNotFound(r.def.Name, "matching query")
		}
		return ent, fmt.Errorf("find %s: %w", r.def.Name, err)
	}
	return ent, nil
}

// List retrieves entities with search and pagination.
func (r *BaseRepo[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	result := ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	q, err := r.BaseSelect()
	if err != nil {
		return result, err
	}

	if filter.Search != "" && len(r.searchCols) > 0 {
		pattern := "%" + filter.Search + "%"
		or := make(squirrel.Or, 0, len(r.searchCols))
		for _, col := range r.searchCols {
			or = append(or, squirrel.ILike{col: pattern})
		}
		q = q.Where(or)
	}

	// Count total before pagination.
	countSQL, countArgs, err := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.s.Querier().QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.def.Name, err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.s.Querier(), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", r.def.Name, err)
	}
	return result, nil
}

// Exists checks if an entity exists, soft-delete scope included.
func (r *BaseRepo[T]) Exists(ctx context.Context, id int64) (bool, error) {
	q, err := r.s.Filters().Apply(
		r.Builder().Select("1").From(r.def.Table),
		r.def.Name, r.scope,
	)
	if err != nil {
		return false, err
	}
	sql, args, err := q.
		Where(squirrel.Eq{"id": id}).
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
		return false, fmt.Errorf("exists %s: %w", r.def.Name, err)
	}
	return true, nil
}

// --- staged writes (flushed by Session.SaveChanges) ---

// Create validates the entity and stages it for insert.
func (r *BaseRepo[T]) Create(ctx context.Context, ent T) error {
	if err := ent.Validate(); err != nil {
		return err
	}
	r.s.StageInsert(r.def, r.cols, ent)
	return nil
}

// Update validates the entity and stages it for update with an optimistic
// concurrency guard on its current updated_at value.
func (r *BaseRepo[T]) Update(ctx context.Context, ent T) error {
	if err := ent.Validate(); err != nil {
		return err
	}
	r.s.StageUpdate(r.def, r.cols, ent)
	return nil
}

// SoftDelete stages the soft-delete transition.
func (r *BaseRepo[T]) SoftDelete(ctx context.Context, ent T) error {
	if ent.GetID() == 0 {
		return apperror.NewValidation("cannot delete an unsaved entity").WithDetail("entity", r.def.Name)
	}
	r.s.StageSoftDelete(r.def, ent)
	return nil
}

// Restore stages the restore transition for a soft-deleted entity.
func (r *BaseRepo[T]) Restore(ctx context.Context, ent T) error {
	if ent.GetID() == 0 {
		return apperror.NewValidation("cannot restore an unsaved entity").WithDetail("entity", r.def.Name)
	}
	r.s.StageRestore(r.def, ent)
	return nil
}

// --- bulk operations ---

// BulkInsert stages the whole batch and flushes it in one save.
// An empty batch is a no-op returning 0 without a store round trip.
func (r *BaseRepo[T]) BulkInsert(ctx context.Context, entities []T) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	for _, ent := range entities {
		if err := r.Create(ctx, ent); err != nil {
			return 0, err
		}
	}
	return r.s.SaveChanges(ctx)
}

// BulkUpdate stages the whole batch and flushes it in one save.
func (r *BaseRepo[T]) BulkUpdate(ctx context.Context, entities []T) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	for _, ent := range entities {
		if err := r.Update(ctx, ent); err != nil {
			return 0, err
		}
	}
	return r.s.SaveChanges(ctx)
}

// BulkDelete stages soft deletes for the whole batch and flushes them in one save.
func (r *BaseRepo[T]) BulkDelete(ctx context.Context, entities []T) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	for _, ent := range entities {
		if err := r.SoftDelete(ctx, ent); err != nil {
			return 0, err
		}
	}
	return r.s.SaveChanges(ctx)
}

// --- administrative purge ---

// HardDelete physically removes a row. Reserved for explicit administrative
// purge; normal deletion is the soft-delete transition.
func (r *BaseRepo[T]) HardDelete(ctx context.Context, id int64) error {
	sql, args, err := r.Builder().
		Delete(r.def.Table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.s.Querier().Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewConflict("cannot purge: entity is referenced elsewhere").
				WithDetail("entity", r.def.Name).
				WithDetail("id", id).
				WithCause(err)
		}
		return fmt.Errorf("purge %s: %w", r.def.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.def.Name, id)
	}
	return nil
}

// parseOrderBy validates the requested ordering against the column whitelist.
// Supports "-field" for descending order.
func (r *BaseRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return "id ASC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	}
	field = strings.TrimSpace(field)

	for _, col := range r.cols {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").
		WithDetail("orderBy", orderBy).
		WithDetail("field", field)
}
