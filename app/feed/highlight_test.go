package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlightIndex(t *testing.T) {
	tests := []struct {
		date string
		n    int
		want int
	}{
		{"2024-03-15", 8, 3},
		{"2024-03-15", 7, 1},
		{"2024-03-15", 10, 1},
		{"2024-03-15", 1, 0},
		{"2024-03-15", 0, -1},
		{"", 5, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HighlightIndex(tt.date, tt.n), "%q mod %d", tt.date, tt.n)
	}
}

func TestHighlightIndexIsStable(t *testing.T) {
	first := HighlightIndex("2025-12-31", 8)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, HighlightIndex("2025-12-31", 8))
	}
}

func TestSplitHighlight(t *testing.T) {
	page := recipes(1, 2, 3, 4, 5, 6, 7, 8)

	highlight, rest := SplitHighlight("2024-03-15", page)
	require.NotNil(t, highlight)
	assert.Equal(t, 4, highlight.ID)
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 8}, ids(rest))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, ids(page), "input must not change")

	highlight, rest = SplitHighlight("2024-03-15", nil)
	assert.Nil(t, highlight)
	assert.Empty(t, rest)
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "2024-03-15", DateKey(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)))
}
