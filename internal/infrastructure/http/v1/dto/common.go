// Package dto defines request/response shapes for API v1.
package dto

// IDResponse returns the identifier of a created entity.
type IDResponse struct {
	ID int64 `json:"id"`
}

// SuccessResponse is a generic success acknowledgement.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ListQuery holds the common listing query parameters.
type ListQuery struct {
	Search  string `form:"search"`
	Limit   int    `form:"limit,default=50"`
	Offset  int    `form:"offset"`
	OrderBy string `form:"orderBy"`
}
