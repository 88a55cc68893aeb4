package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/recipe-planner/app/metrics"
	"github.com/lysyi3m/recipe-planner/app/recipe"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.spoonacular.com"

	defaultDetailConcurrency = 5
	maxErrorBodySize         = 64 << 10
)

type Options struct {
	BaseURL           string
	APIKey            string
	UserAgent         string
	Timeout           time.Duration
	HTTPClient        *http.Client
	Metrics           *metrics.Collector
	Breaker           BreakerConfig
	SearchLimit       int
	DetailConcurrency int
}

// BreakerConfig controls when the provider circuit opens.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.8,
	}
}

// Client calls the recipe provider directly and owns the API credential.
type Client struct {
	baseURL           string
	apiKey            string
	userAgent         string
	httpClient        *http.Client
	breaker           *gobreaker.CircuitBreaker
	metrics           *metrics.Collector
	searchLimit       int
	detailConcurrency int
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	breakerCfg := opts.Breaker
	if breakerCfg == (BreakerConfig{}) {
		breakerCfg = DefaultBreakerConfig()
	}

	searchLimit := opts.SearchLimit
	if searchLimit <= 0 {
		searchLimit = recipe.SearchLimit
	}

	concurrency := opts.DetailConcurrency
	if concurrency <= 0 {
		concurrency = defaultDetailConcurrency
	}

	return &Client{
		baseURL:           baseURL,
		apiKey:            opts.APIKey,
		userAgent:         opts.UserAgent,
		httpClient:        httpClient,
		breaker:           newBreaker(breakerCfg),
		metrics:           opts.Metrics,
		searchLimit:       searchLimit,
		detailConcurrency: concurrency,
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "recipe-provider",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			// 4xx answers mean the provider is up.
			var upErr *recipe.UpstreamError
			if errors.As(err, &upErr) {
				return upErr.Status < http.StatusInternalServerError
			}
			return false
		},
	})
}

type randomResponse struct {
	Recipes []recipe.Recipe `json:"recipes"`
}

type searchResponse struct {
	Results      []recipe.SearchMatch `json:"results"`
	TotalResults int                  `json:"totalResults"`
}

func (c *Client) FetchRandom(ctx context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error) {
	number := q.Number
	if number <= 0 {
		number = recipe.DefaultRandomNumber
	}

	params := url.Values{}
	if q.Tags != "" {
		params.Set("include-tags", q.Tags)
	}
	if q.Exclude != "" {
		params.Set("exclude-tags", q.Exclude)
	}
	params.Set("includeNutrition", strconv.FormatBool(q.IncludeNutrition))
	params.Set("number", strconv.Itoa(number))

	var resp randomResponse
	if err := c.get(ctx, "random", "/recipes/random", params, "Failed to fetch", &resp); err != nil {
		return nil, err
	}

	if resp.Recipes == nil {
		return []recipe.Recipe{}, nil
	}
	return resp.Recipes, nil
}

// ComplexSearch returns up to the configured number of id/title matches.
func (c *Client) ComplexSearch(ctx context.Context, query string) ([]recipe.SearchMatch, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("number", strconv.Itoa(c.searchLimit))

	var resp searchResponse
	if err := c.get(ctx, "search", "/recipes/complexSearch", params, "Failed to search recipes", &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) > c.searchLimit {
		resp.Results = resp.Results[:c.searchLimit]
	}
	return resp.Results, nil
}

func (c *Client) Information(ctx context.Context, id int) (*recipe.Recipe, error) {
	params := url.Values{}
	params.Set("includeNutrition", "false")

	var r recipe.Recipe
	path := fmt.Sprintf("/recipes/%d/information", id)
	if err := c.get(ctx, "information", path, params, "Failed to fetch recipe details", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, fallback string, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()

	start := time.Now()
	status := "error"

	_, err := c.breaker.Execute(func() (any, error) {
		code, err := c.do(ctx, endpoint, fallback, out)
		if code > 0 {
			status = strconv.Itoa(code)
		}
		var netErr *recipe.NetworkError
		if errors.As(err, &netErr) {
			status = "network"
		}
		return nil, err
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		status = "open"
		err = fmt.Errorf("%s: %w", operation, recipe.ErrProviderUnavailable)
	}

	if c.metrics != nil {
		c.metrics.ObserveProvider(operation, status, time.Since(start))
	}

	if err != nil {
		slog.Debug("Provider request failed", "operation", operation, "status", status, "error", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint, fallback string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &recipe.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &recipe.UpstreamError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.Body, fallback),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode provider response: %w", err)
	}

	return resp.StatusCode, nil
}

// errorMessage pulls the provider's "message" field out of an error body.
func errorMessage(body io.Reader, fallback string) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return fallback
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		return fallback
	}
	return payload.Message
}
