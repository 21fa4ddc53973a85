package dto

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// BatchRequest selects records for a bulk action.
type BatchRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// BatchResult reports how many of the requested records an action changed.
type BatchResult struct {
	Requested int    `json:"requested"`
	Affected  int    `json:"affected"`
	IDs       []uint `json:"ids"`
}
