// Package listview holds the paging and filter state of an execution list
// and decides which fetch results are still current.
package listview

import (
	"context"
	"maps"
	"sync"

	"github.com/fakeyudi/chatwatch/internal/api"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 10

// PageSizes are the page sizes offered by the dashboard.
var PageSizes = []int{5, 10, 20}

// Fetcher loads one page of executions.
type Fetcher interface {
	FetchExecutions(ctx context.Context, q api.ListQuery) (*api.ListResult, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, q api.ListQuery) (*api.ListResult, error)

func (f FetcherFunc) FetchExecutions(ctx context.Context, q api.ListQuery) (*api.ListResult, error) {
	return f(ctx, q)
}

// Ticket identifies one issued query. Only the most recent ticket's result
// is applied.
type Ticket struct {
	Generation uint64
	Query      api.ListQuery
}

// State is the list view model. The zero value is not usable; call New.
type State struct {
	mu      sync.Mutex
	page    int
	limit   int
	filters map[string]string

	generation uint64
	loading    bool
	result     *api.ListResult
	err        error
}

// New returns a State on page 1 with the given page size.
func New(limit int) *State {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &State{page: 1, limit: limit, filters: map[string]string{}}
}

// Page returns the current 1-based page.
func (s *State) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Limit returns the page size.
func (s *State) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// Filters returns a copy of the active filters.
func (s *State) Filters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.filters)
}

// Result returns the last applied result, or nil.
func (s *State) Result() *api.ListResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the error of the last applied fetch.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loading reports whether the latest ticket is still outstanding.
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetFilter sets or, for an empty value, removes a filter and returns to
// page 1.
func (s *State) SetFilter(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.filters, key)
	} else {
		s.filters[key] = value
	}
	s.page = 1
}

// ClearFilters removes every filter and returns to page 1.
func (s *State) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.filters)
	s.page = 1
}

// SetLimit changes the page size and returns to page 1. Non-positive
// values are ignored.
func (s *State) SetLimit(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
	s.page = 1
}

// SetPage moves to page n. It is a no-op when n is below 1 or beyond the
// last known page. Page 1 is always allowed.
func (s *State) SetPage(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPageLocked(n)
}

func (s *State) setPageLocked(n int) bool {
	if n < 1 {
		return false
	}
	if last, known := s.lastPageLocked(); known && n > last {
		return false
	}
	s.page = n
	return true
}

// lastPageLocked is the highest page that may be shown. An empty result
// still has page 1.
func (s *State) lastPageLocked() (int, bool) {
	total, known := s.totalPagesLocked()
	return max(total, 1), known
}

// NextPage advances one page if there is one.
func (s *State) NextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasNextLocked() {
		return false
	}
	return s.setPageLocked(s.page + 1)
}

// PrevPage goes back one page if possible. From a page past the end of the
// last result it jumps to the last page.
func (s *State) PrevPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.page - 1
	if last, known := s.lastPageLocked(); known {
		n = min(n, last)
	}
	if n < 1 {
		return false
	}
	return s.setPageLocked(n)
}

// HasNext reports whether a later page exists.
func (s *State) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasNextLocked()
}

func (s *State) hasNextLocked() bool {
	total, known := s.totalPagesLocked()
	return known && s.page < total
}

// HasPrev reports whether an earlier page exists.
func (s *State) HasPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page > 1
}

// TotalPages returns ceil(total/limit) from the last result. Before any
// result arrives it returns 0.
func (s *State) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.totalPagesLocked()
	return n
}

func (s *State) totalPagesLocked() (int, bool) {
	if s.result == nil {
		return 0, false
	}
	return TotalPages(int(s.result.Total), s.limit), true
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Query returns the query for the current page.
func (s *State) Query() api.ListQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked()
}

func (s *State) queryLocked() api.ListQuery {
	return api.ListQuery{Page: s.page, Limit: s.limit, Filters: maps.Clone(s.filters)}
}

// Begin issues a ticket for the current query. Any earlier ticket becomes
// stale.
func (s *State) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.loading = true
	return Ticket{Generation: s.generation, Query: s.queryLocked()}
}

// Apply stores the outcome of t's fetch. It returns false and changes
// nothing when a newer ticket has been issued since. A failed fetch drops
// the previous result so no rows from another query stay on screen.
func (s *State) Apply(t Ticket, res *api.ListResult, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Generation != s.generation {
		return false
	}
	s.loading = false
	s.err = err
	s.result = res
	if err != nil {
		s.result = nil
	}
	return true
}

// Refresh fetches the current page and applies the result if it is still
// current when it arrives.
func (s *State) Refresh(ctx context.Context, f Fetcher) (applied bool, err error) {
	t := s.Begin()
	res, err := f.FetchExecutions(ctx, t.Query)
	return s.Apply(t, res, err), err
}
