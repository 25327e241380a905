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

// FolderRepo manages the folder hierarchy.
type FolderRepo struct {
	*BaseRepo[*content.Folder]
}

// Folders returns the folder repository for the session, creating and caching
// it on first use.
func Folders(s *postgres.Session, reg *entity.Registry) *FolderRepo {
	return s.Repository(content.TypeFolder, func() any {
		return &FolderRepo{
			BaseRepo: New(s, reg.MustGet(content.TypeFolder), []string{"name"},
				func() *content.Folder { return &content.Folder{} }),
		}
	}).(*FolderRepo)
}

// Children lists the direct children of a folder. A nil parentID lists the
// root folders.
func (r *FolderRepo) Children(ctx context.Context, parentID *int64) ([]*content.Folder, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	if parentID == nil {
		q = q.Where(squirrel.Eq{"parent_id": nil})
	} else {
		q = q.Where(squirrel.Eq{"parent_id": *parentID})
	}

	sql, args, err := q.OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var folders []*content.Folder
	if err := pgxscan.Select(ctx, r.s.Querier(), &folders, sql, args...); err != nil {
		return nil, fmt.Errorf("list folder children: %w", err)
	}
	return folders, nil
}

// Subtree returns the folder and all its live descendants, breadth-first.
// Soft-deleted folders prune their entire subtree from the traversal.
func (r *FolderRepo) Subtree(ctx context.Context, rootID int64) ([]*content.Folder, error) {
	sql := `
		WITH RECURSIVE subtree AS (
			SELECT f.*, 0 AS depth
			FROM cms_folders f
			WHERE f.id = $1 AND f.is_deleted = FALSE
			UNION ALL
			SELECT c.*, s.depth + 1
			FROM cms_folders c
			JOIN subtree s ON c.parent_id = s.id
			WHERE c.is_deleted = FALSE
		)
		SELECT ` + joinColumns(r.cols) + `
		FROM subtree
		ORDER BY depth, name`

	var folders []*content.Folder
	if err := pgxscan.Select(ctx, r.s.Querier(), &folders, sql, rootID); err != nil {
		return nil, fmt.Errorf("load folder subtree: %w", err)
	}
	return folders, nil
}

// IsEmpty reports whether a folder has no live children and no live files.
func (r *FolderRepo) IsEmpty(ctx context.Context, id int64) (bool, error) {
	const sql = `
		SELECT NOT EXISTS (
			SELECT 1 FROM cms_folders WHERE parent_id = $1 AND is_deleted = FALSE
		) AND NOT EXISTS (
			SELECT 1 FROM cms_files WHERE folder_id = $1 AND is_deleted = FALSE
		)`

	var empty bool
	if err := r.s.Querier().QueryRow(ctx, sql, id).Scan(&empty); err != nil {
		return false, fmt.Errorf("check folder emptiness: %w", err)
	}
	return empty, nil
}
