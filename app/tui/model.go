package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lysyi3m/recipe-planner/app/client"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// Feed is the part of the feed controller the UI drives.
type Feed interface {
	Start()
	LoadMore() bool
	Refresh() bool
	SetSearchTerm(raw string)
	SubmitSearch() bool
	Snapshot() feed.Snapshot
}

var _ Feed = (*feed.Controller)(nil)

// Service answers the lookups the feed controller does not cover.
type Service interface {
	Information(ctx context.Context, id int) (*recipe.Recipe, error)
	DailyFeed(ctx context.Context) (*feed.Metadata, []feed.Item, error)
}

var _ Service = (*client.Client)(nil)

type viewState int

const (
	viewBrowse viewState = iota
	viewDetail
	viewPlanner
	viewDaily
)

type changedMsg struct{}

type detailLoadedMsg struct {
	recipe   *recipe.Recipe
	rendered string
	err      error
}

type dailyLoadedMsg struct {
	meta  *feed.Metadata
	items []feed.Item
	err   error
}

// Notifier turns controller change callbacks into UI wake-ups. Notify never
// blocks; the UI reads the current snapshot when it wakes.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

func (n *Notifier) Notify(feed.Snapshot) {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

type addDialog struct {
	recipe recipe.Recipe
	date   textinput.Model
	time   textinput.Model
	focus  int
	err    string
}

type Model struct {
	ctx      context.Context
	feed     Feed
	service  Service
	planner  *planner.Store
	notifier *Notifier

	snap      feed.Snapshot
	cursor    int
	view      viewState
	prevView  viewState
	search    textinput.Model
	searching bool
	spinner   spinner.Model

	detail        *recipe.Recipe
	detailText    string
	detailTop     int
	detailLoading bool
	detailErr     error

	dialog *addDialog

	plannerDate   string
	plannerCursor int

	dailyMeta    *feed.Metadata
	dailyItems   []feed.Item
	dailyErr     error
	dailyLoading bool
	dailyCursor  int

	status string
	width  int
	height int

	nowFn    func() time.Time
	renderFn func(string, int) (string, error)
}

func NewModel(ctx context.Context, f Feed, service Service, store *planner.Store, notifier *Notifier) Model {
	search := textinput.New()
	search.Placeholder = "Search recipes"
	search.Prompt = "/ "
	search.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	now := time.Now
	return Model{
		ctx:         ctx,
		feed:        f,
		service:     service,
		planner:     store,
		notifier:    notifier,
		search:      search,
		spinner:     sp,
		plannerDate: planner.Today(now()),
		nowFn:       now,
		renderFn:    renderGlamour,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, startFeedCmd(m.feed), m.waitForChange())
}

func startFeedCmd(f Feed) tea.Cmd {
	return func() tea.Msg {
		f.Start()
		return nil
	}
}

func (m Model) waitForChange() tea.Cmd {
	if m.notifier == nil {
		return nil
	}
	ch, ctx := m.notifier.ch, m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == viewDetail && m.detail != nil && !m.detailLoading {
			m.detailText = m.renderDetail(*m.detail)
		}
		return m, nil

	case changedMsg:
		m.snap = m.feed.Snapshot()
		m.clampCursor()
		return m, m.waitForChange()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case detailLoadedMsg:
		m.detailLoading = false
		if msg.err != nil {
			m.detailErr = msg.err
			return m, nil
		}
		m.detail = msg.recipe
		m.detailText = msg.rendered
		return m, nil

	case dailyLoadedMsg:
		m.dailyLoading = false
		m.dailyErr = msg.err
		if msg.err == nil {
			m.dailyMeta = msg.meta
			m.dailyItems = msg.items
			m.dailyCursor = 0
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.dialog != nil {
			return m.updateDialog(msg)
		}
		switch m.view {
		case viewDetail:
			return m.updateDetail(msg)
		case viewPlanner:
			return m.updatePlanner(msg)
		case viewDaily:
			return m.updateDaily(msg)
		default:
			return m.updateBrowse(msg)
		}
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEnter:
			m.feed.SubmitSearch()
			m.searching = false
			m.search.Blur()
			return m, nil
		case tea.KeyEsc:
			m.searching = false
			m.search.Blur()
			return m, nil
		}

		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.feed.SetSearchTerm(m.search.Value())
		m.snap = m.feed.Snapshot()
		m.cursor = 0
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.feed.SetSearchTerm("")
			m.snap = m.feed.Snapshot()
			m.cursor = 0
		}
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		rows := m.rows()
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
		if m.cursor >= len(rows)-1 && m.snap.Mode == feed.ModeBrowse {
			m.feed.LoadMore()
		}
		return m, nil
	case "g":
		m.cursor = 0
		return m, nil
	case "G":
		if rows := m.rows(); len(rows) > 0 {
			m.cursor = len(rows) - 1
			if m.snap.Mode == feed.ModeBrowse {
				m.feed.LoadMore()
			}
		}
		return m, nil
	case "enter":
		if r, ok := m.selected(); ok {
			return m.openDetail(r)
		}
		return m, nil
	case "a":
		if r, ok := m.selected(); ok {
			return m.openDialog(r)
		}
		return m, nil
	case "r":
		if m.feed.Refresh() {
			m.cursor = 0
		}
		return m, nil
	case "p":
		m.view = viewPlanner
		m.plannerCursor = 0
		return m, nil
	case "D":
		return m.openDaily()
	}

	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = m.prevView
		m.detailTop = 0
		return m, nil
	case "up", "k":
		if m.detailTop > 0 {
			m.detailTop--
		}
		return m, nil
	case "down", "j":
		if m.detailTop < m.maxDetailTop() {
			m.detailTop++
		}
		return m, nil
	case "a":
		if m.detail != nil && !m.detailLoading {
			return m.openDialog(*m.detail)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updatePlanner(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	meals := m.plannedForDay()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "p":
		m.view = viewBrowse
		return m, nil
	case "left", "h":
		m.plannerDate = planner.ShiftDate(m.plannerDate, -1)
		m.plannerCursor = 0
		return m, nil
	case "right", "l":
		m.plannerDate = planner.ShiftDate(m.plannerDate, 1)
		m.plannerCursor = 0
		return m, nil
	case "t":
		m.plannerDate = planner.Today(m.nowFn())
		m.plannerCursor = 0
		return m, nil
	case "up", "k":
		if m.plannerCursor > 0 {
			m.plannerCursor--
		}
		return m, nil
	case "down", "j":
		if m.plannerCursor < len(meals)-1 {
			m.plannerCursor++
		}
		return m, nil
	case "enter":
		if m.plannerCursor < len(meals) {
			return m.openDetail(meals[m.plannerCursor].Recipe)
		}
		return m, nil
	case "d", "x":
		if m.plannerCursor >= len(meals) {
			return m, nil
		}
		meal := meals[m.plannerCursor]
		removed, err := m.planner.Remove(m.ctx, meal.MealID, meal.Date, meal.Time)
		switch {
		case err != nil:
			m.status = "Could not remove meal: " + err.Error()
		case removed:
			m.status = fmt.Sprintf("Removed %s", meal.Recipe.Title)
		}
		if m.plannerCursor > 0 && m.plannerCursor >= len(meals)-1 {
			m.plannerCursor--
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateDaily(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.dailyRows()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "D":
		m.view = viewBrowse
		return m, nil
	case "r":
		return m.openDaily()
	case "up", "k":
		if m.dailyCursor > 0 {
			m.dailyCursor--
		}
		return m, nil
	case "down", "j":
		if m.dailyCursor < len(rows)-1 {
			m.dailyCursor++
		}
		return m, nil
	case "enter":
		if m.dailyCursor < len(rows) {
			return m.openDetail(rows[m.dailyCursor])
		}
		return m, nil
	case "a":
		if m.dailyCursor < len(rows) {
			return m.openDialog(rows[m.dailyCursor])
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.dialog

	switch msg.Type {
	case tea.KeyEsc:
		m.dialog = nil
		return m, nil
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		d.focus = 1 - d.focus
		if d.focus == 0 {
			d.time.Blur()
			return m, d.date.Focus()
		}
		d.date.Blur()
		return m, d.time.Focus()
	case tea.KeyEnter:
		return m.submitDialog()
	}

	var cmd tea.Cmd
	if d.focus == 0 {
		d.date, cmd = d.date.Update(msg)
	} else {
		d.time, cmd = d.time.Update(msg)
	}
	return m, cmd
}

func (m Model) submitDialog() (tea.Model, tea.Cmd) {
	d := m.dialog
	meal := planner.PlannedMeal{
		MealID: d.recipe.ID,
		Date:   strings.TrimSpace(d.date.Value()),
		Time:   strings.TrimSpace(d.time.Value()),
		Recipe: d.recipe,
	}

	added, err := m.planner.Add(m.ctx, meal)
	if err != nil {
		var validationErr *recipe.ValidationError
		if errors.As(err, &validationErr) {
			d.err = validationErr.Message
		} else {
			d.err = "Could not save meal: " + err.Error()
		}
		return m, nil
	}

	when := fmt.Sprintf("%s at %s", planner.DateLabel(meal.Date, m.nowFn()), meal.Time)
	if added {
		m.status = fmt.Sprintf("Added %s · %s", meal.Recipe.Title, when)
	} else {
		m.status = fmt.Sprintf("%s is already planned · %s", meal.Recipe.Title, when)
	}
	m.plannerDate = meal.Date
	m.dialog = nil
	return m, nil
}

func (m Model) openDialog(r recipe.Recipe) (tea.Model, tea.Cmd) {
	date := textinput.New()
	date.Prompt = "Date "
	date.Placeholder = planner.DateLayout
	date.CharLimit = 10
	date.SetValue(m.plannerDate)

	clock := textinput.New()
	clock.Prompt = "Time "
	clock.Placeholder = "HH:MM"
	clock.CharLimit = 5

	m.dialog = &addDialog{recipe: r, date: date, time: clock}
	return m, m.dialog.date.Focus()
}

func (m Model) openDetail(r recipe.Recipe) (tea.Model, tea.Cmd) {
	if m.view != viewDetail {
		m.prevView = m.view
	}
	m.view = viewDetail
	m.detailTop = 0
	m.detailErr = nil
	m.detail = &r

	if len(r.ExtendedIngredients) > 0 || r.Instructions != "" {
		m.detailLoading = false
		m.detailText = m.renderDetail(r)
		return m, nil
	}

	m.detailLoading = true
	m.detailText = ""
	return m, loadDetailCmd(m.ctx, m.service, r.ID, m.renderFn, m.contentWidth())
}

func (m Model) openDaily() (tea.Model, tea.Cmd) {
	m.view = viewDaily
	m.dailyLoading = true
	m.dailyErr = nil
	return m, loadDailyCmd(m.ctx, m.service)
}

func (m Model) renderDetail(r recipe.Recipe) string {
	markdown := RecipeMarkdown(r)
	out, err := m.renderFn(markdown, m.contentWidth())
	if err != nil {
		return markdown
	}
	return out
}

func loadDetailCmd(ctx context.Context, service Service, id int, renderFn func(string, int) (string, error), width int) tea.Cmd {
	return func() tea.Msg {
		r, err := service.Information(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		markdown := RecipeMarkdown(*r)
		rendered, err := renderFn(markdown, width)
		if err != nil {
			rendered = markdown
		}
		return detailLoadedMsg{recipe: r, rendered: rendered}
	}
}

func loadDailyCmd(ctx context.Context, service Service) tea.Cmd {
	return func() tea.Msg {
		meta, items, err := service.DailyFeed(ctx)
		return dailyLoadedMsg{meta: meta, items: items, err: err}
	}
}

// rows lists the browse entries in display order, highlight first.
func (m Model) rows() []recipe.Recipe {
	if m.snap.Highlight == nil {
		return m.snap.Recipes
	}
	rows := make([]recipe.Recipe, 0, len(m.snap.Recipes)+1)
	rows = append(rows, *m.snap.Highlight)
	return append(rows, m.snap.Recipes...)
}

func (m Model) selected() (recipe.Recipe, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return recipe.Recipe{}, false
	}
	return rows[m.cursor], true
}

// dailyRows turns feed items into recipe stubs. Opening one fetches the
// full recipe since the feed carries no ingredients or instructions.
func (m Model) dailyRows() []recipe.Recipe {
	rows := make([]recipe.Recipe, 0, len(m.dailyItems))
	for _, item := range m.dailyItems {
		rows = append(rows, itemRecipe(item))
	}
	return rows
}

func itemRecipe(item feed.Item) recipe.Recipe {
	return recipe.Recipe{
		ID:             item.RecipeID,
		Title:          item.Title,
		Image:          item.ImageURL,
		Summary:        item.Description,
		SourceURL:      item.Link,
		ReadyInMinutes: item.ReadyInMinutes,
	}
}

// plannedForDay returns the selected day's meals ordered by time.
func (m Model) plannedForDay() []planner.PlannedMeal {
	meals := m.planner.ForDate(m.plannerDate)
	slices.SortStableFunc(meals, func(a, b planner.PlannedMeal) int {
		return strings.Compare(a.Time, b.Time)
	})
	return meals
}

func (m *Model) clampCursor() {
	rows := m.rows()
	if m.cursor >= len(rows) {
		m.cursor = max(len(rows)-1, 0)
	}
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return max(m.width-4, 20)
}

func (m Model) bodyHeight() int {
	if m.height <= 0 {
		return 20
	}
	return max(m.height-6, 3)
}

func (m Model) maxDetailTop() int {
	lines := strings.Count(m.detailText, "\n") + 1
	return max(lines-m.bodyHeight(), 0)
}
