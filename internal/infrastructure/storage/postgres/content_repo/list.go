package content_repo

// ListFilter holds the common listing parameters.
type ListFilter struct {
	// Search matches case-insensitively against the repo's search columns.
	Search string
	// Limit/Offset paginate; Limit <= 0 means no limit.
	Limit  int
	Offset int
	// OrderBy is a column name, optionally prefixed with "-" for descending.
	OrderBy string
}

// ListResult is one page of entities plus the unpaginated total.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
}
