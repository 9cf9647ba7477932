package paginator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/paulexconde/surveydesk/internal/pkg/store"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type PaginatedResponse[T any] struct {
	Items       []T  `json:"items"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	PrevPage    *int `json:"prevPage"`
	NextPage    *int `json:"nextPage"`
	TotalItems  int  `json:"totalItems"`
}

// Params is a 1-based page request.
type Params struct {
	Page  int
	Limit int
}

// ParseParams reads raw query values. Anything unparsable falls back to the defaults.
func ParseParams(page, limit string) Params {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return Params{Page: p, Limit: l}.normalize()
}

func (p Params) normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Params) offset() int {
	return (p.Page - 1) * p.Limit
}

type Paginator[T any] interface {
	// PaginateQuery pages through query, which uses `?` placeholders and carries its own ORDER BY.
	PaginateQuery(ctx context.Context, query string, args []any, params Params) (*PaginatedResponse[T], error)
}

type paginatorImpl[T any] struct {
	datastore store.Datastorer[T]
}

func NewPaginator[T any](ds store.Datastorer[T]) Paginator[T] {
	return &paginatorImpl[T]{datastore: ds}
}

func (p *paginatorImpl[T]) PaginateQuery(ctx context.Context, query string, args []any, params Params) (*PaginatedResponse[T], error) {
	params = params.normalize()

	total, err := p.count(ctx, query, args)
	if err != nil {
		return nil, err
	}

	pageArgs := append(append([]any{}, args...), params.Limit, params.offset())
	items, err := p.datastore.Select(ctx, query+" LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return nil, err
	}

	return newPage(items, params, total), nil
}

func (p *paginatorImpl[T]) count(ctx context.Context, query string, args []any) (int, error) {
	raw, err := p.datastore.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS total_count", query), args...)
	if err != nil {
		return 0, err
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int for total count, got %T", raw)
	}
}

func newPage[T any](items []T, params Params, total int) *PaginatedResponse[T] {
	totalPages := (total + params.Limit - 1) / params.Limit

	var prevPage, nextPage *int
	if params.Page > 1 {
		prev := params.Page - 1
		prevPage = &prev
	}
	if params.Page < totalPages {
		next := params.Page + 1
		nextPage = &next
	}

	if items == nil {
		items = []T{}
	}

	return &PaginatedResponse[T]{
		Items:       items,
		CurrentPage: params.Page,
		TotalPages:  totalPages,
		PrevPage:    prevPage,
		NextPage:    nextPage,
		TotalItems:  total,
	}
}
