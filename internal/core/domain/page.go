package domain

// PageMeta mirrors the ledger's pagination metadata
type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Page is one page of rows from a paged ledger read
type Page[T any] struct {
	Items []T      `json:"data"`
	Meta  PageMeta `json:"meta"`
}

// EmptyPage returns a page with no rows for the requested position
func EmptyPage[T any](page, size int) *Page[T] {
	return &Page[T]{
		Items: []T{},
		Meta:  PageMeta{Page: page, Size: size},
	}
}
