package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/metrics"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/recipe"
	"github.com/lysyi3m/recipe-planner/app/tasks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	random    []recipe.Recipe
	search    []recipe.Recipe
	detail    *recipe.Recipe
	err       error
	lastQuery recipe.RandomQuery
	lastTerm  string
}

func (p *fakeProvider) FetchRandom(_ context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQuery = q
	if p.err != nil {
		return nil, p.err
	}
	if q.Number < len(p.random) {
		return p.random[:q.Number], nil
	}
	return p.random, nil
}

func (p *fakeProvider) SearchByText(_ context.Context, term string) ([]recipe.Recipe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastTerm = term
	if p.err != nil {
		return nil, p.err
	}
	return p.search, nil
}

func (p *fakeProvider) Information(_ context.Context, id int) (*recipe.Recipe, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.detail == nil || p.detail.ID != id {
		return nil, &recipe.UpstreamError{Status: http.StatusNotFound, Message: "A recipe with the id could not be found."}
	}
	return p.detail, nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	dates   []string
	forced  []bool
	enqueue error
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return s.enqueue
}

func (s *fakeScheduler) EnqueueDailyRefresh(date string, force bool) (*tasks.RefreshDailyPicksTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueue != nil {
		return nil, s.enqueue
	}
	s.dates = append(s.dates, date)
	s.forced = append(s.forced, force)
	return tasks.NewRefreshDailyPicksTask(date, nil, nil, 8), nil
}

type testEnv struct {
	router    *gin.Engine
	provider  *fakeProvider
	scheduler *fakeScheduler
	picks     *database.DailyPicksStore
	store     *planner.Store
	metrics   *metrics.Collector
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	presetsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(presetsDir, "quick.yml"),
		[]byte("description: Quick weeknight food\ntags: Main Course, Quick\nexclude: nuts\n"), 0644))
	presets := feed.NewPresetCache(presetsDir)
	require.NoError(t, presets.Run())

	store, err := planner.NewStore(context.Background(), planner.NewMemoryStorage())
	require.NoError(t, err)

	env := &testEnv{
		provider:  &fakeProvider{},
		scheduler: &fakeScheduler{},
		picks:     database.NewDailyPicksStore(db),
		store:     store,
		metrics:   metrics.NewCollector(),
	}

	handler := NewHandler(env.provider, env.picks, presets, store, env.scheduler, "http://planner.test", "test")
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.Local) }

	env.router = NewServer(handler, apiKey, env.metrics)
	return env
}

func (e *testEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func recipes(n int) []recipe.Recipe {
	out := make([]recipe.Recipe, n)
	for i := range out {
		out[i] = recipe.Recipe{ID: i + 1, Title: "Recipe"}
	}
	return out
}

func TestRandomRecipes(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.random = recipes(20)

	w := env.do(http.MethodGet, "/api/recipes/random?number=8&tags=dessert", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp recipesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Recipes, 8)
	assert.Equal(t, recipe.RandomQuery{Tags: "dessert", Number: 8}, env.provider.lastQuery)
}

func TestRandomRecipesDefaultsAndPreset(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.random = recipes(20)

	w := env.do(http.MethodGet, "/api/recipes/random?preset=quick&includeNutrition=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, recipe.RandomQuery{
		Tags:             "main course,quick",
		Exclude:          "nuts",
		IncludeNutrition: true,
		Number:           recipe.DefaultRandomNumber,
	}, env.provider.lastQuery)

	w = env.do(http.MethodGet, "/api/recipes/random?preset=quick&tags=vegan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vegan", env.provider.lastQuery.Tags)
	assert.Equal(t, "nuts", env.provider.lastQuery.Exclude)
}

func TestRandomRecipesBadParams(t *testing.T) {
	env := newTestEnv(t, "")

	for _, target := range []string{
		"/api/recipes/random?number=0",
		"/api/recipes/random?number=101",
		"/api/recipes/random?number=abc",
		"/api/recipes/random?includeNutrition=maybe",
		"/api/recipes/random?preset=unknown",
	} {
		w := env.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.NotEmpty(t, decode(t, w)["error"], target)
	}
}

func TestRandomRecipesErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"quota passes through", &recipe.UpstreamError{Status: 402, Message: "Your daily points limit of 150 has been reached."}, 402, "Your daily points limit of 150 has been reached."},
		{"breaker open", recipe.ErrProviderUnavailable, 503, recipe.UserMessage(recipe.ErrProviderUnavailable)},
		{"network", &recipe.NetworkError{Err: errors.New("dial tcp")}, 500, "Server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.provider.err = tt.err

			w := env.do(http.MethodGet, "/api/recipes/random", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["error"])
		})
	}
}

func TestSearchRecipes(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.search = []recipe.Recipe{{ID: 3, Title: "Pasta"}, {ID: 1, Title: "Pasta Bake"}}

	w := env.do(http.MethodGet, "/api/recipes/search?query=%20pasta%20", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pasta", env.provider.lastTerm)

	var resp recipesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Recipes, 2)
	assert.Equal(t, 3, resp.Recipes[0].ID)
}

func TestSearchMissingQuery(t *testing.T) {
	env := newTestEnv(t, "")

	for _, target := range []string{"/api/recipes/search", "/api/recipes/search?query=%20%20"} {
		w := env.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Missing search query"}`, w.Body.String())
	}
	assert.Empty(t, env.provider.lastTerm)
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"detail failure", &recipe.DetailError{ID: 2, Err: &recipe.UpstreamError{Status: 404, Message: "not found"}}, 500, msgDetailServerError},
		{"detail during open breaker", &recipe.DetailError{ID: 2, Err: recipe.ErrProviderUnavailable}, 500, msgDetailServerError},
		{"phase one upstream", &recipe.UpstreamError{Status: 401, Message: "You are not authorized."}, 401, "You are not authorized."},
		{"phase one open breaker", recipe.ErrProviderUnavailable, 503, recipe.UserMessage(recipe.ErrProviderUnavailable)},
		{"unknown", errors.New("boom"), 500, msgDetailServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.provider.err = tt.err

			w := env.do(http.MethodGet, "/api/recipes/search?query=soup", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["error"])
		})
	}
}

func TestGetRecipe(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.detail = &recipe.Recipe{ID: 42, Title: "Answer Stew"}

	w := env.do(http.MethodGet, "/api/recipes/42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Answer Stew", decode(t, w)["title"])

	w = env.do(http.MethodGet, "/api/recipes/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/recipes/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDailyPicks(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	w := env.do(http.MethodGet, "/api/recipes/daily", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, []string{"2024-03-15"}, env.scheduler.dates)

	require.NoError(t, env.picks.SaveDailyPicks(ctx, database.DailyPicks{
		Date:      "2024-03-14",
		Highlight: &recipe.Recipe{ID: 9, Title: "Yesterday"},
		FetchedAt: time.Now(),
	}))

	w = env.do(http.MethodGet, "/api/recipes/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-14", w.Header().Get("X-Picks-Date"))
	assert.Len(t, env.scheduler.dates, 2)

	require.NoError(t, env.picks.SaveDailyPicks(ctx, database.DailyPicks{
		Date:      "2024-03-15",
		Highlight: &recipe.Recipe{ID: 4, Title: "Today"},
		Recipes:   []recipe.Recipe{{ID: 1, Title: "One"}},
		FetchedAt: time.Now(),
	}))

	w = env.do(http.MethodGet, "/api/recipes/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-15", decode(t, w)["date"])
	assert.Len(t, env.scheduler.dates, 2)
}

func TestDailyFeed(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.picks.SaveDailyPicks(context.Background(), database.DailyPicks{
		Date:      "2024-03-15",
		Highlight: &recipe.Recipe{ID: 4, Title: "Today"},
		Recipes:   []recipe.Recipe{{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}},
		FetchedAt: time.Now(),
	}))

	w := env.do(http.MethodGet, "/feeds/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Equal(t, "3", w.Header().Get("X-Feed-Items"))

	_, items, err := feed.NewParser().Run(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 4, items[0].RecipeID)
	assert.True(t, items[0].Highlight)
}

func TestListPresets(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/api/presets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"presets":[{"name":"quick","description":"Quick weeknight food","tags":"main course,quick","exclude":"nuts"}],"total":1}`, w.Body.String())
}

func TestPlannerRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	meal := `{"mealId":7,"date":"2024-03-15","time":"08:30","recipe":{"id":7,"title":"Porridge"}}`

	w := env.do(http.MethodPost, "/api/planner/meals", meal)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["added"])

	w = env.do(http.MethodPost, "/api/planner/meals", meal)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["added"])

	w = env.do(http.MethodGet, "/api/planner/meals?date=2024-03-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = env.do(http.MethodGet, "/api/planner/meals?date=2024-03-16", "")
	assert.Equal(t, float64(0), decode(t, w)["total"])

	w = env.do(http.MethodGet, "/api/planner/meals?date=15.03.2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/planner/meals?mealId=7&date=2024-03-15&time=08:30", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["removed"])

	w = env.do(http.MethodDelete, "/api/planner/meals?mealId=7&date=2024-03-15&time=08:30", "")
	assert.Equal(t, false, decode(t, w)["removed"])
	assert.Zero(t, env.store.Count())
}

func TestPlannerValidation(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/planner/meals", `{"mealId":7,"date":"","time":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please select both date and time.", decode(t, w)["error"])

	w = env.do(http.MethodPost, "/api/planner/meals", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/planner/meals?mealId=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlannerRequiresKey(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.do(http.MethodGet, "/api/planner/meals", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "API key required", decode(t, w)["error"])

	w = env.do(http.MethodGet, "/api/planner/meals", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/planner/meals", "", "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/planner/meals", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)

	env.provider.random = recipes(1)
	w = env.do(http.MethodGet, "/api/recipes/random", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshDailyPicks(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.do(http.MethodPost, "/api/recipes/daily/refresh", "", "X-API-Key", "secret")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []bool{true}, env.scheduler.forced)

	env.scheduler.enqueue = errors.New("task queue is full")
	w = env.do(http.MethodPost, "/api/recipes/daily/refresh", "", "X-API-Key", "secret")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["daily_picks_ready"])

	w = env.do(http.MethodGet, "/health", "", requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w = env.do(http.MethodOptions, "/api/planner/meals", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("GET", "/health", "200")))

	w = env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recipe_planner_http_requests_total")
}

func TestRootAndFavicon(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Recipe Planner", decode(t, w)["service"])

	w = env.do(http.MethodGet, "/favicon.ico", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
