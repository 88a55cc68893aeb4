package feed

import (
	"context"
	"time"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// Retriever is whatever can fetch random pages and run text searches.
type Retriever interface {
	FetchRandom(ctx context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error)
	SearchByText(ctx context.Context, term string) ([]recipe.Recipe, error)
}

type Mode int

const (
	ModeBrowse Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "browse"
}

// Snapshot is an immutable view of what the feed currently displays.
type Snapshot struct {
	Mode       Mode
	Recipes    []recipe.Recipe
	Highlight  *recipe.Recipe
	Page       int
	SearchTerm string
	Loading    bool
	Err        error
}

// Metadata and Item describe a parsed daily picks feed.

type Metadata struct {
	Title         string
	Link          string
	Description   string
	Language      string
	LastBuildDate *time.Time
}

type Item struct {
	GUID        string
	RecipeID    int
	Title       string
	Link        string
	Description string
	ImageURL    string
	PublishedAt time.Time
	Categories  []string
	Highlight   bool
	// ReadyInMinutes is read back from the ready-in-N-min category.
	ReadyInMinutes *int
}

// Preset is a named set of tag filters loaded from YAML.
type Preset struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Tags        string `yaml:"tags" json:"tags"`
	Exclude     string `yaml:"exclude" json:"exclude,omitempty"`
}
