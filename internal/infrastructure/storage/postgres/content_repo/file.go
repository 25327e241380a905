package content_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"papyrus/internal/core/entity"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/storage/postgres"
)

// FileRepo manages stored file metadata.
type FileRepo struct {
	*BaseRepo[*content.File]
}

// Files returns the file repository for the session, creating and caching it
// on first use.
func Files(s *postgres.Session, reg *entity.Registry) *FileRepo {
	return s.Repository(content.TypeFile, func() any {
		return &FileRepo{
			BaseRepo: New(s, reg.MustGet(content.TypeFile), []string{"name", "mime_type"},
				func() *content.File { return &content.File{} }),
		}
	}).(*FileRepo)
}

// ListByFolder lists the live files in a folder.
func (r *FileRepo) ListByFolder(ctx context.Context, folderID int64) ([]*content.File, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	sql, args, err := q.
		Where(squirrel.Eq{"folder_id": folderID}).
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var files []*content.File
	if err := pgxscan.Select(ctx, r.s.Querier(), &files, sql, args...); err != nil {
		return nil, fmt.Errorf("list files by folder: %w", err)
	}
	return files, nil
}

// GetByStorageKey finds a file by its backing storage key.
func (r *FileRepo) GetByStorageKey(ctx context.Context, key string) (*content.File, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	return r.FindOne(ctx, q.Where(squirrel.Eq{"storage_key": key}).Limit(1))
}

// TotalSizeByFolder sums the byte sizes of the live files in a folder.
func (r *FileRepo) TotalSizeByFolder(ctx context.Context, folderID int64) (int64, error) {
	q, err := r.s.Filters().Apply(
		r.Builder().
			Select("COALESCE(SUM(size_bytes), 0)").
			From(r.def.Table),
		r.def.Name, r.scope,
	)
	if err != nil {
		return 0, err
	}
	sql, args, err := q.Where(squirrel.Eq{"folder_id": folderID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var total int64
	if err := r.s.Querier().QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum file sizes: %w", err)
	}
	return total, nil
}
