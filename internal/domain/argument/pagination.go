package argument

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/domain"
)

// Reserved argument keys. They never reach the filter composer.
const (
	KeyFirst         = "first"
	KeyOffset        = "offset"
	KeyOrderBy       = "order_by"
	KeySortDirection = "sort_direction"
	KeyInput         = "input"
)

// IsReserved reports whether key is consumed by the argument model itself.
func IsReserved(key string) bool {
	switch key {
	case KeyFirst, KeyOffset, KeyOrderBy, KeySortDirection, KeyInput:
		return true
	}
	return false
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// PageConfig carries per-query paging defaults.
type PageConfig struct {
	DefaultSize int
	MaxSize     int
	// DefaultSort is the backend field used when order_by is absent or unknown.
	DefaultSort string
	// SortFields maps caller-facing sort names to backend fields.
	SortFields map[string]string
}

// Pagination is a validated page request.
type Pagination struct {
	size      int
	offset    int
	sortField string
	direction Direction
}

// NewPagination builds a page from raw arguments.
// Size is clamped to cfg.MaxSize (or domain.MaxPageSize), negative offsets become 0,
// unknown sort fields fall back to cfg.DefaultSort, direction defaults to desc.
func NewPagination(raw map[string]any, cfg PageConfig) (Pagination, error) {
	maxSize := cfg.MaxSize
	if maxSize <= 0 || maxSize > domain.MaxPageSize {
		maxSize = domain.MaxPageSize
	}
	size := cfg.DefaultSize
	if size <= 0 {
		size = maxSize
	}

	if v, ok := raw[KeyFirst]; ok && v != nil {
		n, err := numberToInt(v)
		if err != nil {
			return Pagination{}, domain.NewFieldError(KeyFirst, err)
		}
		if n > 0 {
			size = int(n)
		}
	}
	if size > maxSize {
		size = maxSize
	}

	offset := 0
	if v, ok := raw[KeyOffset]; ok && v != nil {
		n, err := numberToInt(v)
		if err != nil {
			return Pagination{}, domain.NewFieldError(KeyOffset, err)
		}
		if n > 0 {
			offset = int(n)
		}
	}

	sortField := cfg.DefaultSort
	if v, ok := raw[KeyOrderBy].(string); ok && v != "" {
		if mapped, known := cfg.SortFields[v]; known {
			sortField = mapped
		}
	}

	dir := Desc
	if v, ok := raw[KeySortDirection].(string); ok && v != "" {
		switch Direction(strings.ToLower(v)) {
		case Asc:
			dir = Asc
		case Desc:
			dir = Desc
		default:
			return Pagination{}, domain.NewFieldError(KeySortDirection,
				fmt.Errorf("sort direction %q: %w", v, domain.ErrInvalidArgument))
		}
	}

	return Pagination{size: size, offset: offset, sortField: sortField, direction: dir}, nil
}

// NewPage builds a page directly; used by internal callers that bypass raw arguments.
func NewPage(size, offset int, sortField string, dir Direction) Pagination {
	if offset < 0 {
		offset = 0
	}
	if dir == "" {
		dir = Desc
	}
	return Pagination{size: size, offset: offset, sortField: sortField, direction: dir}
}

// Size returns the page size.
func (p Pagination) Size() int { return p.size }

// Offset returns the number of documents to skip.
func (p Pagination) Offset() int { return p.offset }

// SortField returns the backend sort field. Empty means unsorted.
func (p Pagination) SortField() string { return p.sortField }

// Direction returns the sort direction.
func (p Pagination) Direction() Direction { return p.direction }

// Sort renders the backend sort clause, or nil when no sort field is set.
func (p Pagination) Sort() []any {
	if p.sortField == "" {
		return nil
	}
	return []any{map[string]any{p.sortField: map[string]any{"order": string(p.direction)}}}
}
