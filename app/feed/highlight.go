package feed

import (
	"time"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// DateKey is the ISO calendar date used to pick the daily highlight.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// HighlightIndex sums the character codes of date and reduces the sum modulo
// n. It returns -1 when there is nothing to pick from.
func HighlightIndex(date string, n int) int {
	if n <= 0 {
		return -1
	}

	sum := 0
	for _, r := range date {
		sum += int(r)
	}
	return sum % n
}

// SplitHighlight removes the day's highlight from page and returns both.
func SplitHighlight(date string, page []recipe.Recipe) (*recipe.Recipe, []recipe.Recipe) {
	idx := HighlightIndex(date, len(page))
	if idx < 0 {
		return nil, page
	}

	highlight := page[idx]
	rest := make([]recipe.Recipe, 0, len(page)-1)
	rest = append(rest, page[:idx]...)
	rest = append(rest, page[idx+1:]...)
	return &highlight, rest
}
