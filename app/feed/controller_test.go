package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/recipe-planner/app/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testDebounce = 40 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

func recipes(ids ...int) []recipe.Recipe {
	out := make([]recipe.Recipe, len(ids))
	for i, id := range ids {
		out[i] = recipe.Recipe{ID: id, Title: fmt.Sprintf("Recipe %d", id)}
	}
	return out
}

func ids(rs []recipe.Recipe) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

type fakeRetriever struct {
	mu          sync.Mutex
	pages       [][]recipe.Recipe
	pageErrs    map[int]error
	randomCalls int
	queries     []recipe.RandomQuery
	searches    []string
	release     chan struct{}
	searchFn    func(ctx context.Context, term string) ([]recipe.Recipe, error)
}

func (f *fakeRetriever) FetchRandom(ctx context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error) {
	f.mu.Lock()
	f.randomCalls++
	call := f.randomCalls
	f.queries = append(f.queries, q)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pageErrs[call]; err != nil {
		return nil, err
	}
	if call > len(f.pages) {
		return []recipe.Recipe{}, nil
	}
	return f.pages[call-1], nil
}

func (f *fakeRetriever) SearchByText(ctx context.Context, term string) ([]recipe.Recipe, error) {
	f.mu.Lock()
	f.searches = append(f.searches, term)
	fn := f.searchFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, term)
	}
	return recipes(100, 101), nil
}

func (f *fakeRetriever) calls() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.randomCalls, append([]string(nil), f.searches...)
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 15, 9, 0, 0, 0, time.Local)
}

func newTestController(t *testing.T, r Retriever) *Controller {
	t.Helper()
	c := NewController(context.Background(), r, Options{Debounce: testDebounce, Now: fixedNow})
	t.Cleanup(c.Close)
	return c
}

func waitForPage(t *testing.T, c *Controller, page int) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.Page == page && !s.Loading
	}, waitFor, tick)
	return c.Snapshot()
}

func TestControllerFirstPageHighlight(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1, 2, 3, 4, 5, 6, 7, 8)}}
	c := newTestController(t, r)

	c.Start()
	snap := waitForPage(t, c, 1)

	// "2024-03-15" sums to 491; 491 % 8 == 3.
	require.NotNil(t, snap.Highlight)
	assert.Equal(t, 4, snap.Highlight.ID)
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 8}, ids(snap.Recipes))
	assert.Equal(t, ModeBrowse, snap.Mode)

	require.Len(t, r.queries, 1)
	assert.Equal(t, DefaultPageSize, r.queries[0].Number)
}

func TestControllerAccumulatesWithoutDuplicates(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{
		recipes(1, 2, 3, 4, 5, 6, 7, 8),
		recipes(8, 4, 9, 10),
	}}
	c := newTestController(t, r)

	c.Start()
	waitForPage(t, c, 1)

	require.True(t, c.LoadMore())
	snap := waitForPage(t, c, 2)

	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 8, 9, 10}, ids(snap.Recipes))
	assert.Equal(t, 4, snap.Highlight.ID)
}

func TestControllerLoadMoreIsGuarded(t *testing.T) {
	r := &fakeRetriever{
		pages:   [][]recipe.Recipe{recipes(1, 2, 3)},
		release: make(chan struct{}),
	}
	c := newTestController(t, r)

	require.True(t, c.LoadMore())
	assert.False(t, c.LoadMore())
	assert.False(t, c.LoadMore())
	assert.True(t, c.Snapshot().Loading)

	close(r.release)
	waitForPage(t, c, 1)

	calls, _ := r.calls()
	assert.Equal(t, 1, calls)
}

func TestControllerFailureKeepsData(t *testing.T) {
	r := &fakeRetriever{
		pages:    [][]recipe.Recipe{recipes(1, 2, 3)},
		pageErrs: map[int]error{2: &recipe.UpstreamError{Status: 402, Message: "quota"}},
	}
	c := newTestController(t, r)

	c.Start()
	before := waitForPage(t, c, 1)

	require.True(t, c.LoadMore())
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return !s.Loading && s.Err != nil
	}, waitFor, tick)

	snap := c.Snapshot()
	assert.ErrorIs(t, snap.Err, recipe.ErrQuotaExceeded)
	assert.Equal(t, ids(before.Recipes), ids(snap.Recipes))
	assert.Equal(t, 1, snap.Page)

	time.Sleep(3 * testDebounce)
	calls, _ := r.calls()
	assert.Equal(t, 2, calls, "failed fetch must not be retried")
}

func TestControllerShortTermsNeverSearch(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1, 2)}}
	c := newTestController(t, r)
	c.Start()
	waitForPage(t, c, 1)

	for _, term := range []string{"p", "pa", "  pa  ", "\t", ""} {
		c.SetSearchTerm(term)
	}
	time.Sleep(4 * testDebounce)

	_, searches := r.calls()
	assert.Empty(t, searches)
	assert.Equal(t, ModeBrowse, c.Snapshot().Mode)
}

func TestControllerDebouncesKeystrokes(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1, 2, 3)}}
	c := newTestController(t, r)
	c.Start()
	waitForPage(t, c, 1)

	for _, term := range []string{"p", "pa", "pas", "past", "pasta"} {
		c.SetSearchTerm(term)
		time.Sleep(testDebounce / 8)
	}

	require.Eventually(t, func() bool {
		_, searches := r.calls()
		return len(searches) == 1
	}, waitFor, tick)

	time.Sleep(4 * testDebounce)
	_, searches := r.calls()
	assert.Equal(t, []string{"pasta"}, searches)

	require.Eventually(t, func() bool { return !c.Snapshot().Loading }, waitFor, tick)
	snap := c.Snapshot()
	assert.Equal(t, ModeSearch, snap.Mode)
	assert.Equal(t, "pasta", snap.SearchTerm)
	assert.Equal(t, []int{100, 101}, ids(snap.Recipes))
	assert.Nil(t, snap.Highlight)
}

func TestControllerSubmitSearchSkipsDebounce(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1, 2, 3)}}
	c := NewController(context.Background(), r, Options{Debounce: time.Hour, Now: fixedNow})
	t.Cleanup(c.Close)
	c.Start()
	waitForPage(t, c, 1)

	assert.False(t, c.SubmitSearch())

	c.SetSearchTerm("pasta")
	assert.True(t, c.SubmitSearch())

	require.Eventually(t, func() bool { return !c.Snapshot().Loading }, waitFor, tick)
	snap := c.Snapshot()
	assert.Equal(t, ModeSearch, snap.Mode)
	assert.Equal(t, []int{100, 101}, ids(snap.Recipes))

	assert.False(t, c.SubmitSearch())
	_, searches := r.calls()
	assert.Equal(t, []string{"pasta"}, searches)
}

func TestControllerKeepsDisplayWhileSearching(t *testing.T) {
	release := make(chan struct{})
	r := &fakeRetriever{
		pages: [][]recipe.Recipe{recipes(1, 2, 3)},
		searchFn: func(ctx context.Context, term string) ([]recipe.Recipe, error) {
			select {
			case <-release:
				return recipes(50), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	c := newTestController(t, r)
	c.Start()
	browse := waitForPage(t, c, 1)

	c.SetSearchTerm("soup")

	snap := c.Snapshot()
	assert.Equal(t, ModeSearch, snap.Mode)
	assert.True(t, snap.Loading)
	assert.Equal(t, ids(browse.Recipes), ids(snap.Recipes))

	require.Eventually(t, func() bool {
		_, searches := r.calls()
		return len(searches) == 1
	}, waitFor, tick)
	assert.True(t, c.Snapshot().Loading)

	close(release)
	require.Eventually(t, func() bool { return !c.Snapshot().Loading }, waitFor, tick)
	assert.Equal(t, []int{50}, ids(c.Snapshot().Recipes))
}

func TestControllerClearingSearchResumesBrowse(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1, 2, 3, 4, 5, 6, 7, 8)}}
	c := newTestController(t, r)
	c.Start()
	browse := waitForPage(t, c, 1)

	c.SetSearchTerm("curry")
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.Mode == ModeSearch && !s.Loading
	}, waitFor, tick)

	c.SetSearchTerm("")
	snap := c.Snapshot()

	assert.Equal(t, ModeBrowse, snap.Mode)
	assert.Equal(t, ids(browse.Recipes), ids(snap.Recipes))
	assert.Equal(t, browse.Highlight.ID, snap.Highlight.ID)
	assert.Equal(t, 1, snap.Page)

	calls, _ := r.calls()
	assert.Equal(t, 1, calls)
}

func TestControllerDiscardsStaleSearch(t *testing.T) {
	cancelled := make(chan string, 1)
	r := &fakeRetriever{
		pages: [][]recipe.Recipe{recipes(1)},
		searchFn: func(ctx context.Context, term string) ([]recipe.Recipe, error) {
			if term == "alpha" {
				<-ctx.Done()
				cancelled <- term
				return recipes(1000), nil
			}
			return recipes(2000), nil
		},
	}
	c := newTestController(t, r)

	c.SetSearchTerm("alpha")
	require.Eventually(t, func() bool {
		_, searches := r.calls()
		return len(searches) == 1
	}, waitFor, tick)

	c.SetSearchTerm("bravo")

	select {
	case term := <-cancelled:
		assert.Equal(t, "alpha", term)
	case <-time.After(waitFor):
		t.Fatal("superseded search was not cancelled")
	}

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return !s.Loading && len(s.Recipes) == 1 && s.Recipes[0].ID == 2000
	}, waitFor, tick)
}

func TestControllerSearchErrorKeepsDisplay(t *testing.T) {
	r := &fakeRetriever{
		pages: [][]recipe.Recipe{recipes(1, 2)},
		searchFn: func(ctx context.Context, term string) ([]recipe.Recipe, error) {
			return nil, &recipe.NetworkError{Err: errors.New("offline")}
		},
	}
	c := newTestController(t, r)
	c.Start()
	browse := waitForPage(t, c, 1)

	c.SetSearchTerm("tacos")
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return !s.Loading && s.Err != nil
	}, waitFor, tick)

	snap := c.Snapshot()
	var netErr *recipe.NetworkError
	assert.ErrorAs(t, snap.Err, &netErr)
	assert.Equal(t, ids(browse.Recipes), ids(snap.Recipes))
}

func TestControllerLoadMoreIgnoredInSearchMode(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1)}}
	c := newTestController(t, r)
	c.Start()
	waitForPage(t, c, 1)

	c.SetSearchTerm("salad")
	assert.False(t, c.LoadMore())
}

func TestControllerRefreshStartsOver(t *testing.T) {
	r := &fakeRetriever{pages: [][]recipe.Recipe{
		recipes(1, 2, 3, 4, 5, 6, 7, 8),
		recipes(11, 12, 13, 14, 15, 16, 17, 18),
	}}
	c := newTestController(t, r)
	c.Start()
	waitForPage(t, c, 1)

	require.True(t, c.Refresh())
	snap := waitForPage(t, c, 1)

	assert.Equal(t, 14, snap.Highlight.ID)
	assert.Equal(t, []int{11, 12, 13, 15, 16, 17, 18}, ids(snap.Recipes))
}

func TestControllerOnChange(t *testing.T) {
	var mu sync.Mutex
	var snaps []Snapshot

	r := &fakeRetriever{pages: [][]recipe.Recipe{recipes(1, 2)}}
	c := NewController(context.Background(), r, Options{
		Debounce: testDebounce,
		Now:      fixedNow,
		OnChange: func(s Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		},
	})
	defer c.Close()

	c.Start()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) >= 2
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, snaps[0].Loading)
	assert.False(t, snaps[len(snaps)-1].Loading)
}

func TestControllerCloseCancelsPending(t *testing.T) {
	r := &fakeRetriever{release: make(chan struct{})}
	c := NewController(context.Background(), r, Options{Debounce: testDebounce, Now: fixedNow})

	c.Start()
	c.SetSearchTerm("pending")
	c.Close()

	assert.False(t, c.LoadMore())
	time.Sleep(2 * testDebounce)
	_, searches := r.calls()
	assert.Empty(t, searches)
}
