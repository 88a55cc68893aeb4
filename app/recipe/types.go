package recipe

// ImageFallback is shown when a recipe carries no image URL.
const ImageFallback = "https://placehold.co/300x200?text=No+Image"

type Recipe struct {
	ID                  int          `json:"id"`
	Title               string       `json:"title"`
	Image               string       `json:"image"`
	Summary             string       `json:"summary,omitempty"`
	Instructions        string       `json:"instructions,omitempty"`
	ReadyInMinutes      *int         `json:"readyInMinutes,omitempty"`
	Servings            *int         `json:"servings,omitempty"`
	SourceURL           string       `json:"sourceUrl,omitempty"`
	ExtendedIngredients []Ingredient `json:"extendedIngredients"`
}

type Ingredient struct {
	ID       int       `json:"id,omitempty"`
	Original string    `json:"original"`
	Measures *Measures `json:"measures,omitempty"`
}

type Measures struct {
	Metric *Measure `json:"metric,omitempty"`
	US     *Measure `json:"us,omitempty"`
}

type Measure struct {
	Amount    float64 `json:"amount"`
	UnitShort string  `json:"unitShort"`
}

// SearchMatch is a keyword search hit before its details are fetched.
type SearchMatch struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// RandomQuery holds the filters forwarded to the random recipe lookup.
type RandomQuery struct {
	Tags             string
	Exclude          string
	IncludeNutrition bool
	Number           int
}

// DefaultRandomNumber is used when a random query does not ask for a count.
const DefaultRandomNumber = 10

// SearchLimit caps the number of keyword matches that get detail lookups.
const SearchLimit = 10

func (r Recipe) ImageOrFallback() string {
	if r.Image == "" {
		return ImageFallback
	}
	return r.Image
}

func IntPtr(v int) *int {
	return &v
}
