package shared

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 200

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// FiltersFromQuery reads page, limit, search, sort, dir and active. Missing or
// out of range paging falls back to defaults; a malformed active flag is
// rejected.
func FiltersFromQuery(q url.Values) (ListFilters, error) {
	f := ListFilters{
		Page:    DefaultPage,
		Limit:   DefaultLimit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: SortAsc,
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page >= 1 {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit >= 1 {
		f.Limit = min(limit, MaxLimit)
	}
	if q.Get("dir") == SortDesc {
		f.SortDir = SortDesc
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilters{}, fmt.Errorf("%w: active must be a boolean", ErrValidation)
		}
		f.IsActive = &active
	}
	return f, nil
}
