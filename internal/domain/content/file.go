package content

import (
	"strings"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
)

// File is an uploaded binary asset. The payload itself lives in object
// storage; the entity carries metadata and the storage key only.
type File struct {
	entity.Base

	FolderID   *int64 `db:"folder_id" json:"folderId,omitempty"`
	Name       string `db:"name" json:"name"`
	MimeType   string `db:"mime_type" json:"mimeType"`
	SizeBytes  int64  `db:"size_bytes" json:"sizeBytes"`
	StorageKey string `db:"storage_key" json:"storageKey"`
}

// Validate checks file invariants.
func (f *File) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return apperror.NewValidation("file name is required").WithDetail("field", "name")
	}
	if f.StorageKey == "" {
		return apperror.NewValidation("storage key is required").WithDetail("field", "storageKey")
	}
	if f.SizeBytes < 0 {
		return apperror.NewValidation("file size cannot be negative").WithDetail("field", "sizeBytes")
	}
	return nil
}
