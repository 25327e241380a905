// Package content defines the CMS domain entities: folders, files, pages
// and products. Every type embeds entity.Base and is persisted through the
// generic unit-of-work layer.
package content

import (
	"strings"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
)

// Folder is a node in the content hierarchy.
type Folder struct {
	entity.Base

	Name     string `db:"name" json:"name"`
	ParentID *int64 `db:"parent_id" json:"parentId,omitempty"`
}

// Validate checks folder invariants.
func (f *Folder) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return apperror.NewValidation("folder name is required").WithDetail("field", "name")
	}
	if f.ParentID != nil && *f.ParentID == f.ID && f.ID != 0 {
		return apperror.NewValidation("folder cannot be its own parent").WithDetail("field", "parentId")
	}
	return nil
}
