package feed

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/recipe-planner/app/recipe"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultPageSize        = 8
	DefaultDebounce        = 500 * time.Millisecond
	DefaultMinSearchLength = 3
)

type Options struct {
	PageSize        int
	Debounce        time.Duration
	MinSearchLength int
	Tags            string
	Exclude         string
	// Now supplies the date used for the daily highlight.
	Now func() time.Time
	// OnChange is called outside the controller lock after every state change.
	OnChange func(Snapshot)
}

// Controller decides which recipes are on screen. Browse mode accumulates
// random pages; search mode replaces the display with debounced search
// results. The browse state survives a detour through search mode.
type Controller struct {
	retriever Retriever
	opts      Options
	debouncer *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// browse state
	acc           Accumulator
	highlight     *recipe.Recipe
	page          int
	browseSeq     uint64
	browseLoading bool
	browseErr     error

	// search state
	term          string
	searchSeq     uint64
	searchPending bool
	searchShown   bool
	searchResults []recipe.Recipe
	searchErr     error
	cancelSearch  context.CancelFunc
}

func NewController(ctx context.Context, retriever Retriever, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinSearchLength <= 0 {
		opts.MinSearchLength = DefaultMinSearchLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Controller{
		retriever: retriever,
		opts:      opts,
		debouncer: NewDebouncer(opts.Debounce),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start loads the first browse page unless one was already loaded.
func (c *Controller) Start() {
	c.mu.Lock()
	empty := c.page == 0
	c.mu.Unlock()

	if empty {
		c.LoadMore()
	}
}

// LoadMore fetches the next browse page. It reports false without doing
// anything when a page is already in flight, a search is active, or the
// controller is closed.
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	if c.closed || c.term != "" || c.browseLoading {
		c.mu.Unlock()
		return false
	}

	c.browseLoading = true
	c.browseErr = nil
	seq := c.browseSeq
	page := c.page + 1
	c.wg.Add(1)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)

	go c.fetchPage(seq, page)
	return true
}

// Refresh throws the browse state away and loads page 1 again.
func (c *Controller) Refresh() bool {
	c.mu.Lock()
	c.resetBrowseLocked()
	c.mu.Unlock()

	return c.LoadMore()
}

func (c *Controller) resetBrowseLocked() {
	c.browseSeq++
	c.acc.Reset()
	c.highlight = nil
	c.page = 0
	c.browseLoading = false
	c.browseErr = nil
}

func (c *Controller) fetchPage(seq uint64, page int) {
	defer c.wg.Done()

	recipes, err := c.retriever.FetchRandom(c.ctx, recipe.RandomQuery{
		Tags:    c.opts.Tags,
		Exclude: c.opts.Exclude,
		Number:  c.opts.PageSize,
	})

	c.mu.Lock()
	if seq != c.browseSeq || c.closed {
		c.mu.Unlock()
		slog.Debug("Discarding stale browse page", "page", page)
		return
	}

	c.browseLoading = false

	if err != nil {
		c.browseErr = err
		slog.Warn("Failed to load browse page", "page", page, "error", err)
	} else {
		if page == 1 && c.highlight == nil {
			highlight, rest := SplitHighlight(DateKey(c.opts.Now()), recipes)
			if highlight != nil {
				c.highlight = highlight
				c.acc.Mark(highlight.ID)
			}
			recipes = rest
		}
		added := c.acc.Add(recipes)
		c.page = page
		slog.Debug("Browse page loaded", "page", page, "fetched", len(recipes), "added", added)
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)
}

// SetSearchTerm updates the search input. Terms shorter than the minimum
// length after trimming mean no search; anything else fires once the input
// has been quiet for the debounce period.
func (c *Controller) SetSearchTerm(raw string) {
	term := norm.NFC.String(strings.TrimSpace(raw))
	if utf8.RuneCountInString(term) < c.opts.MinSearchLength {
		term = ""
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if term == c.term {
		c.mu.Unlock()
		return
	}

	c.searchSeq++
	if c.cancelSearch != nil {
		c.cancelSearch()
		c.cancelSearch = nil
	}
	c.term = term

	if term == "" {
		c.debouncer.Cancel()
		c.searchPending = false
		c.searchShown = false
		c.searchResults = nil
		c.searchErr = nil
		resume := c.page == 0 && !c.browseLoading
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.emit(snap)
		if resume {
			c.LoadMore()
		}
		return
	}

	seq := c.searchSeq
	c.searchPending = true
	c.searchErr = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.debouncer.Debounce(func() {
		c.runSearch(seq, term)
	})
	c.emit(snap)
}

// SubmitSearch runs the pending search now instead of waiting out the
// debounce. It reports false when no search is waiting to start.
func (c *Controller) SubmitSearch() bool {
	c.mu.Lock()
	if c.closed || !c.searchPending || c.cancelSearch != nil {
		c.mu.Unlock()
		return false
	}
	seq, term := c.searchSeq, c.term
	c.mu.Unlock()

	c.debouncer.Immediate(func() {
		go c.runSearch(seq, term)
	})
	return true
}

func (c *Controller) runSearch(seq uint64, term string) {
	c.mu.Lock()
	// A search runs at most once per term: the debounce timer and
	// SubmitSearch can both reach this point.
	if c.closed || seq != c.searchSeq || !c.searchPending || c.cancelSearch != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelSearch = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()
	defer cancel()

	results, err := c.retriever.SearchByText(ctx, term)

	c.mu.Lock()
	if c.closed || seq != c.searchSeq {
		c.mu.Unlock()
		slog.Debug("Discarding stale search results", "term", term)
		return
	}

	c.searchPending = false
	c.cancelSearch = nil

	if err != nil {
		c.searchErr = err
		slog.Warn("Recipe search failed", "term", term, "error", err)
	} else {
		c.searchResults = results
		c.searchShown = true
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.emit(snap)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	if c.term == "" {
		return Snapshot{
			Mode:      ModeBrowse,
			Recipes:   c.acc.Items(),
			Highlight: cloneRecipe(c.highlight),
			Page:      c.page,
			Loading:   c.browseLoading,
			Err:       c.browseErr,
		}
	}

	snap := Snapshot{
		Mode:       ModeSearch,
		Page:       c.page,
		SearchTerm: c.term,
		Loading:    c.searchPending,
		Err:        c.searchErr,
	}

	if c.searchShown {
		snap.Recipes = slices.Clone(c.searchResults)
	} else {
		// Keep the browse grid on screen until the first results arrive.
		snap.Recipes = c.acc.Items()
		snap.Highlight = cloneRecipe(c.highlight)
	}
	return snap
}

func (c *Controller) emit(snap Snapshot) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
}

// Close stops pending work and waits for in-flight fetches to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.debouncer.Cancel()
	c.cancel()
	c.wg.Wait()
}

func cloneRecipe(r *recipe.Recipe) *recipe.Recipe {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
