package feed

import (
	"slices"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// Accumulator collects recipes across pages in first-seen order and drops
// ids it has already seen. The zero value is ready to use.
type Accumulator struct {
	items []recipe.Recipe
	seen  map[int]struct{}
}

// Add appends the unseen recipes and returns how many were kept.
func (a *Accumulator) Add(recipes []recipe.Recipe) int {
	added := 0
	for _, r := range recipes {
		if a.Seen(r.ID) {
			continue
		}
		a.Mark(r.ID)
		a.items = append(a.items, r)
		added++
	}
	return added
}

// Mark records id as seen without displaying it.
func (a *Accumulator) Mark(id int) {
	if a.seen == nil {
		a.seen = make(map[int]struct{})
	}
	a.seen[id] = struct{}{}
}

func (a *Accumulator) Seen(id int) bool {
	_, ok := a.seen[id]
	return ok
}

func (a *Accumulator) Items() []recipe.Recipe {
	return slices.Clone(a.items)
}

func (a *Accumulator) Len() int {
	return len(a.items)
}

func (a *Accumulator) Reset() {
	a.items = nil
	a.seen = nil
}
