package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParseSkipLimit reads offset style paging (skip, limit) from the query string.
func ParseSkipLimit(r *http.Request, defaultLimit, maxLimit int) (skip, limit int) {
	limit = defaultLimit
	if s, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && s > 0 {
		skip = s
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return
}

// Offset converts a 1-based page into a row offset.
func Offset(page, perPage int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * perPage
}
