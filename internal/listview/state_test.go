package listview

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/chatwatch/internal/api"
)

func resultWithTotal(total int) *api.ListResult {
	return &api.ListResult{Total: api.Count(total)}
}

// loaded returns a State whose last result reports total items.
func loaded(limit, total int) *State {
	s := New(limit)
	s.Apply(s.Begin(), resultWithTotal(total), nil)
	return s
}

// Feature: chatwatch, Property 4: Filter and limit changes reset the page
func TestFilterAndLimitChangesResetPage(t *testing.T) {
	keys := rapid.SampledFrom(api.FilterKeys)
	values := rapid.StringMatching(`[a-zA-Z0-9]{0,6}`)

	rapid.Check(t, func(t *rapid.T) {
		s := loaded(5, rapid.IntRange(1, 500).Draw(t, "total"))
		s.SetPage(rapid.IntRange(1, s.TotalPages()).Draw(t, "page"))

		switch rapid.IntRange(0, 2).Draw(t, "op") {
		case 0:
			s.SetFilter(keys.Draw(t, "key"), values.Draw(t, "value"))
		case 1:
			s.ClearFilters()
		case 2:
			s.SetLimit(rapid.IntRange(1, 50).Draw(t, "limit"))
		}
		if s.Page() != 1 {
			t.Fatalf("page = %d after filter/limit change, want 1", s.Page())
		}
	})
}

func TestSetFilterEmptyValueRemovesKey(t *testing.T) {
	s := New(10)
	s.SetFilter(api.FilterEmployeeID, "E1")
	s.SetFilter(api.FilterStatus, "success")
	s.SetFilter(api.FilterEmployeeID, "")

	got := s.Filters()
	if _, ok := got[api.FilterEmployeeID]; ok {
		t.Errorf("employee_id should be removed, filters = %v", got)
	}
	if got[api.FilterStatus] != "success" {
		t.Errorf("status filter lost, filters = %v", got)
	}

	// Filters returns a copy.
	got[api.FilterSearch] = "x"
	if _, ok := s.Filters()[api.FilterSearch]; ok {
		t.Error("mutating the returned map changed the state")
	}
}

func TestSetLimitIgnoresNonPositive(t *testing.T) {
	s := loaded(10, 100)
	s.SetPage(4)
	s.SetLimit(0)
	s.SetLimit(-3)
	if s.Limit() != 10 || s.Page() != 4 {
		t.Errorf("limit=%d page=%d, want 10 and 4", s.Limit(), s.Page())
	}
}

func TestSetPageBounds(t *testing.T) {
	s := loaded(10, 45) // 5 pages

	tests := []struct {
		page     int
		wantOK   bool
		wantPage int
	}{
		{0, false, 1},
		{-1, false, 1},
		{6, false, 1},
		{5, true, 5},
		{2, true, 2},
	}
	for _, tt := range tests {
		ok := s.SetPage(tt.page)
		if ok != tt.wantOK || s.Page() != tt.wantPage {
			t.Errorf("SetPage(%d) = %v, page %d; want %v, page %d", tt.page, ok, s.Page(), tt.wantOK, tt.wantPage)
		}
	}
}

func TestSetPageBeforeFirstResult(t *testing.T) {
	s := New(10)
	if !s.SetPage(3) {
		t.Fatal("SetPage should be allowed while the total is unknown")
	}
	if s.HasNext() {
		t.Error("HasNext must be false while the total is unknown")
	}
	if !s.HasPrev() {
		t.Error("HasPrev should be true on page 3")
	}
}

func TestNextPrevPage(t *testing.T) {
	s := loaded(20, 41) // 3 pages

	if s.PrevPage() {
		t.Error("PrevPage on page 1 should be a no-op")
	}
	for want := 2; want <= 3; want++ {
		if !s.NextPage() || s.Page() != want {
			t.Fatalf("NextPage: page = %d, want %d", s.Page(), want)
		}
	}
	if s.HasNext() || s.NextPage() {
		t.Error("there is no page after the last")
	}
	if !s.PrevPage() || s.Page() != 2 {
		t.Errorf("PrevPage: page = %d, want 2", s.Page())
	}
}

func TestPrevPageFromBeyondLastPage(t *testing.T) {
	s := New(10)
	s.SetPage(5)
	s.Apply(s.Begin(), resultWithTotal(20), nil) // 2 pages

	if !s.HasPrev() {
		t.Fatal("HasPrev should be true on page 5")
	}
	if !s.PrevPage() || s.Page() != 2 {
		t.Fatalf("PrevPage from page 5 of 2: page = %d, want 2", s.Page())
	}
	if !s.PrevPage() || s.Page() != 1 {
		t.Errorf("PrevPage: page = %d, want 1", s.Page())
	}
}

func TestPrevPageAfterEmptyResult(t *testing.T) {
	s := New(10)
	s.SetPage(4)
	s.Apply(s.Begin(), resultWithTotal(0), nil)

	if !s.PrevPage() || s.Page() != 1 {
		t.Errorf("PrevPage with no results: page = %d, want 1", s.Page())
	}
}

func TestSetPageOneWithEmptyResult(t *testing.T) {
	s := loaded(10, 0)
	if !s.SetPage(1) {
		t.Error("page 1 must always be allowed")
	}
	if s.SetPage(2) {
		t.Error("SetPage(2) should fail when there are no results")
	}
	if s.Page() != 1 {
		t.Errorf("page = %d, want 1", s.Page())
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ total, limit, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 5, 20},
		{7, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.limit); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	s := loaded(10, 100)

	first := s.Begin()
	s.SetPage(2)
	second := s.Begin()

	page2 := &api.ListResult{Total: 100, Page: 2}
	if !s.Apply(second, page2, nil) {
		t.Fatal("latest ticket should apply")
	}
	// Page 1 resolves after page 2 and must not overwrite it.
	if s.Apply(first, &api.ListResult{Total: 100, Page: 1}, nil) {
		t.Fatal("stale ticket applied")
	}
	if s.Result() != page2 {
		t.Errorf("result = %+v, want page 2", s.Result())
	}
	if first.Query.Page != 1 || second.Query.Page != 2 {
		t.Errorf("tickets carry pages %d and %d", first.Query.Page, second.Query.Page)
	}
}

// Feature: chatwatch, Property 5: Only the latest ticket is applied
func TestOnlyLatestTicketApplies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New(10)
		n := rapid.IntRange(1, 10).Draw(t, "tickets")
		tickets := make([]Ticket, n)
		for i := range tickets {
			tickets[i] = s.Begin()
		}
		order := rapid.Permutation(tickets).Draw(t, "order")

		var applied []uint64
		for _, tk := range order {
			if s.Apply(tk, resultWithTotal(int(tk.Generation)), nil) {
				applied = append(applied, tk.Generation)
			}
		}
		if len(applied) != 1 || applied[0] != tickets[n-1].Generation {
			t.Fatalf("applied generations %v, want only %d", applied, tickets[n-1].Generation)
		}
		if s.Loading() {
			t.Fatal("still loading after the latest ticket applied")
		}
	})
}

func TestApplyErrorClearsResult(t *testing.T) {
	s := New(10)
	s.Apply(s.Begin(), &api.ListResult{
		Total:   30,
		Results: []api.ExecutionRecord{{ExecutionID: "1", Status: api.StatusSuccess}},
	}, nil)

	s.SetFilter(api.FilterStatus, api.StatusFailure)
	boom := errors.New("API error: 500")
	if !s.Apply(s.Begin(), nil, boom) {
		t.Fatal("latest ticket should apply")
	}
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Err = %v, want %v", s.Err(), boom)
	}
	if res := s.Result(); res != nil {
		t.Errorf("rows from the previous query survived a failed fetch: %+v", res.Results)
	}
	if s.TotalPages() != 0 {
		t.Errorf("TotalPages = %d after a failed fetch, want 0", s.TotalPages())
	}

	s.Apply(s.Begin(), resultWithTotal(5), nil)
	if s.Err() != nil {
		t.Errorf("Err = %v after success, want nil", s.Err())
	}
	if s.Result() == nil {
		t.Error("a successful fetch should store its result")
	}
}

func TestRefreshOverlappingFetches(t *testing.T) {
	s := New(10)
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	fetch := FetcherFunc(func(ctx context.Context, q api.ListQuery) (*api.ListResult, error) {
		started <- struct{}{}
		if q.Page == 1 {
			<-release
		}
		return &api.ListResult{Page: q.Page, Total: 100}, nil
	})

	var wg sync.WaitGroup
	var slowApplied bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowApplied, _ = s.Refresh(context.Background(), fetch)
	}()
	<-started

	s.SetPage(2)
	fastApplied, err := s.Refresh(context.Background(), fetch)
	if err != nil || !fastApplied {
		t.Fatalf("page 2 refresh: applied=%v err=%v", fastApplied, err)
	}
	close(release)
	wg.Wait()

	if slowApplied {
		t.Error("the slower page 1 response was applied")
	}
	if got := s.Result().Page; got != 2 {
		t.Errorf("result page = %d, want 2", got)
	}
}
