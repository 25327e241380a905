package content_repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/storage/postgres"
)

// stubDB satisfies postgres.DB for tests that never reach the wire.
type stubDB struct {
	calls int
}

func (db *stubDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls++
	return pgconn.CommandTag{}, errors.New("unexpected database call")
}

func (db *stubDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls++
	return nil, errors.New("unexpected database call")
}

func (db *stubDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.calls++
	return nil
}

func (db *stubDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.calls++
	return nil, errors.New("unexpected database call")
}

func newTestPages(t *testing.T) (*PageRepo, *stubDB) {
	t.Helper()
	reg := entity.NewRegistry()
	content.RegisterAll(reg)

	filters, err := postgres.InstallSoftDeleteFilters(reg)
	require.NoError(t, err)

	db := &stubDB{}
	s := postgres.NewSessionFactory(db, filters).NewSession()
	return Pages(s, reg), db
}

func TestBaseSelect_DefaultScopeFiltersDeleted(t *testing.T) {
	repo, _ := newTestPages(t)

	q, err := repo.BaseSelect()
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM cms_pages WHERE is_deleted = $1")
	assert.Equal(t, []any{false}, args)
}

func TestBaseSelect_IncludeDeletedDropsFilter(t *testing.T) {
	repo, _ := newTestPages(t)

	q, err := repo.IncludeDeleted().BaseSelect()
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "is_deleted")
	assert.Empty(t, args)
}

func TestBaseSelect_OnlyDeletedInvertsFilter(t *testing.T) {
	repo, _ := newTestPages(t)

	q, err := repo.OnlyDeleted().BaseSelect()
	require.NoError(t, err)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "is_deleted = $1")
	assert.Equal(t, []any{true}, args)
}

func TestScopedViews_DoNotMutateTheOriginal(t *testing.T) {
	repo, _ := newTestPages(t)

	_ = repo.IncludeDeleted()
	_ = repo.OnlyDeleted()

	q, err := repo.BaseSelect()
	require.NoError(t, err)

	_, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, []any{false}, args)
}

func TestParseOrderBy(t *testing.T) {
	repo, _ := newTestPages(t)

	tests := []struct {
		name    string
		orderBy string
		want    string
		wantErr bool
	}{
		{name: "empty defaults to id", orderBy: "", want: "id ASC"},
		{name: "ascending column", orderBy: "title", want: "title ASC"},
		{name: "descending column", orderBy: "-updated_at", want: "updated_at DESC"},
		{name: "unknown column rejected", orderBy: "evil; DROP TABLE", wantErr: true},
		{name: "non-column rejected", orderBy: "body_length", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.parseOrderBy(tt.orderBy)
			if tt.wantErr {
				require.Error(t, err)
				appErr, ok := apperror.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, apperror.CodeValidation, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBulkOperations_EmptyBatchSkipsTheStore(t *testing.T) {
	repo, db := newTestPages(t)
	ctx := context.Background()

	n, err := repo.BulkInsert(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.BulkUpdate(ctx, []*content.Page{})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.BulkDelete(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Zero(t, db.calls)
}

func TestCreate_ValidatesBeforeStaging(t *testing.T) {
	repo, db := newTestPages(t)

	err := repo.Create(context.Background(), &content.Page{Slug: "bad slug!", Title: "x"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Zero(t, db.calls)
}

func TestSoftDelete_RejectsUnsavedEntity(t *testing.T) {
	repo, _ := newTestPages(t)

	err := repo.SoftDelete(context.Background(), &content.Page{Slug: "welcome", Title: "Welcome"})
	require.Error(t, err)

	err = repo.Restore(context.Background(), &content.Page{Slug: "welcome", Title: "Welcome"})
	require.Error(t, err)
}
