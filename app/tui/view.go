package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	periodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	dialogStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func (m Model) View() string {
	var body string
	switch m.view {
	case viewDetail:
		body = m.detailView()
	case viewPlanner:
		body = m.plannerView()
	case viewDaily:
		body = m.dailyView()
	default:
		body = m.browseView()
	}

	if m.dialog != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.dialogView())
	}
	if m.status != "" {
		body += "\n" + dimStyle.Render(m.status)
	}
	return body
}

func (m Model) browseView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Recipe Planner"))
	b.WriteString(dimStyle.Render(" · " + m.snap.Mode.String()))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString("\n\n")

	if m.snap.Err != nil {
		b.WriteString(errorStyle.Render(recipe.UserMessage(m.snap.Err)))
		b.WriteString("\n")
	}

	rows := m.rows()
	start, end := window(m.cursor, len(rows), m.bodyHeight())
	for i := start; i < end; i++ {
		featured := i == 0 && m.snap.Highlight != nil
		b.WriteString(renderListLine(i == m.cursor, recipeLine(rows[i], featured)))
		b.WriteString("\n")
	}

	switch {
	case m.snap.Loading && m.snap.Mode == feed.ModeSearch:
		b.WriteString(m.spinner.View() + " Searching...\n")
	case m.snap.Loading:
		b.WriteString(m.spinner.View() + " Loading recipes...\n")
	case m.snap.Mode == feed.ModeSearch && len(rows) == 0 && m.snap.Err == nil:
		fmt.Fprintf(&b, "No recipes found for %q.\n", m.snap.SearchTerm)
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("j/k move • enter details • a plan • / search • esc clear • r refresh • p planner • D daily • q quit"))
	return b.String()
}

func (m Model) detailView() string {
	if m.detailLoading {
		return m.spinner.View() + " Loading recipe..."
	}
	if m.detailErr != nil {
		return errorStyle.Render(recipe.UserMessage(m.detailErr)) + "\n\n" + dimStyle.Render("esc back")
	}

	lines := strings.Split(m.detailText, "\n")
	top := min(m.detailTop, max(len(lines)-1, 0))
	end := min(top+m.bodyHeight(), len(lines))

	return strings.Join(lines[top:end], "\n") + "\n" + dimStyle.Render("j/k scroll • a plan • esc back • q quit")
}

func (m Model) plannerView() string {
	var b strings.Builder

	label := planner.DateLabel(m.plannerDate, m.nowFn())
	b.WriteString(titleStyle.Render("Planner · " + label))
	b.WriteString(dimStyle.Render(" (" + m.plannerDate + ")"))
	b.WriteString("\n\n")

	meals := m.plannedForDay()
	if len(meals) == 0 {
		b.WriteString(dimStyle.Render("Nothing planned for this day."))
		b.WriteString("\n")
	}

	var period planner.Period
	for i, meal := range meals {
		if p := planner.MealPeriod(meal.Time); p != period {
			period = p
			b.WriteString(periodStyle.Render(string(period)))
			b.WriteString("\n")
		}
		b.WriteString(renderListLine(i == m.plannerCursor, fmt.Sprintf("%s  %s", meal.Time, meal.Recipe.Title)))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d meals planned in total", m.planner.Count())))
	b.WriteString(dimStyle.Render("h/l day • t today • enter details • d remove • esc back • q quit"))
	return b.String()
}

func (m Model) dailyView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Daily picks"))
	if m.dailyMeta != nil && m.dailyMeta.Title != "" {
		b.WriteString(dimStyle.Render(" · " + m.dailyMeta.Title))
	}
	b.WriteString("\n\n")

	if m.dailyLoading {
		b.WriteString(m.spinner.View() + " Loading daily picks...\n")
	} else {
		if m.dailyErr != nil {
			b.WriteString(errorStyle.Render(recipe.UserMessage(m.dailyErr)))
			b.WriteString("\n")
		}
		for i, r := range m.dailyRows() {
			b.WriteString(renderListLine(i == m.dailyCursor, recipeLine(r, m.dailyItems[i].Highlight)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("j/k move • enter details • a plan • r reload • esc back • q quit"))
	return b.String()
}

func (m Model) dialogView() string {
	d := m.dialog

	lines := []string{
		titleStyle.Render("Plan " + d.recipe.Title),
		d.date.View(),
		d.time.View(),
	}
	if d.err != "" {
		lines = append(lines, errorStyle.Render(d.err))
	}
	lines = append(lines, dimStyle.Render("tab switch • enter save • esc cancel"))

	return dialogStyle.Render(strings.Join(lines, "\n"))
}

func recipeLine(r recipe.Recipe, featured bool) string {
	title := r.Title
	if featured {
		title = highlightStyle.Render("★ " + r.Title)
	}

	var meta []string
	if r.ReadyInMinutes != nil {
		meta = append(meta, fmt.Sprintf("%d min", *r.ReadyInMinutes))
	}
	if r.Servings != nil {
		meta = append(meta, fmt.Sprintf("%d servings", *r.Servings))
	}
	if len(meta) == 0 {
		return title
	}
	return title + dimStyle.Render("  "+strings.Join(meta, " · "))
}

func renderListLine(active bool, line string) string {
	if active {
		return selectedStyle.Render("> ") + line
	}
	return "  " + line
}

// window returns the slice bounds that keep cursor visible in height rows.
func window(cursor, total, height int) (int, int) {
	if total <= height {
		return 0, total
	}
	start := max(cursor-height+1, 0)
	return start, min(start+height, total)
}
