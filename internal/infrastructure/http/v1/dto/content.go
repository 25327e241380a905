package dto

import "papyrus/internal/core/types"

// CreateFolderRequest creates a folder, optionally under a parent.
type CreateFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID *int64 `json:"parentId"`
}

// UpdateFolderRequest renames or moves a folder.
type UpdateFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID *int64 `json:"parentId"`
}

// CreateFileRequest registers file metadata.
type CreateFileRequest struct {
	FolderID   int64  `json:"folderId" binding:"required"`
	Name       string `json:"name" binding:"required"`
	MimeType   string `json:"mimeType" binding:"required"`
	SizeBytes  int64  `json:"sizeBytes"`
	StorageKey string `json:"storageKey" binding:"required"`
}

// CreatePageRequest creates a page.
type CreatePageRequest struct {
	Slug  string `json:"slug" binding:"required"`
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}

// UpdatePageRequest updates a page's content.
type UpdatePageRequest struct {
	Slug  string `json:"slug" binding:"required"`
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
}

// CreateProductRequest creates a product.
type CreateProductRequest struct {
	SKU         string      `json:"sku" binding:"required"`
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	Price       types.Money `json:"price"`
}

// UpdateProductRequest updates a product.
type UpdateProductRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	Price       types.Money `json:"price"`
}
