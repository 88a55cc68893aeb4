package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

var _ feed.Retriever = (*Client)(nil)

const maxBodySize = 4 << 20

// Client talks to the proxy endpoints. It never sees the provider key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	parser     *feed.Parser
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		parser:     feed.NewParser(),
	}
}

type recipesResponse struct {
	Recipes []recipe.Recipe `json:"recipes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) FetchRandom(ctx context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error) {
	params := url.Values{}
	if q.Tags != "" {
		params.Set("tags", q.Tags)
	}
	if q.Exclude != "" {
		params.Set("exclude", q.Exclude)
	}
	if q.IncludeNutrition {
		params.Set("includeNutrition", "true")
	}
	if q.Number > 0 {
		params.Set("number", strconv.Itoa(q.Number))
	}

	var resp recipesResponse
	if err := c.getJSON(ctx, "/api/recipes/random", params, &resp); err != nil {
		return nil, err
	}
	return resp.Recipes, nil
}

func (c *Client) SearchByText(ctx context.Context, term string) ([]recipe.Recipe, error) {
	params := url.Values{}
	params.Set("query", term)

	var resp recipesResponse
	if err := c.getJSON(ctx, "/api/recipes/search", params, &resp); err != nil {
		return nil, err
	}
	return resp.Recipes, nil
}

func (c *Client) Information(ctx context.Context, id int) (*recipe.Recipe, error) {
	var r recipe.Recipe
	if err := c.getJSON(ctx, fmt.Sprintf("/api/recipes/%d", id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Presets(ctx context.Context) ([]feed.Preset, error) {
	var resp struct {
		Presets []feed.Preset `json:"presets"`
	}
	if err := c.getJSON(ctx, "/api/presets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Presets, nil
}

// DailyFeed reads the RSS rendition of today's picks.
func (c *Client) DailyFeed(ctx context.Context) (*feed.Metadata, []feed.Item, error) {
	data, err := c.get(ctx, "/feeds/daily", nil)
	if err != nil {
		return nil, nil, err
	}
	return c.parser.Run(data)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	data, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &recipe.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &recipe.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body errorResponse
		message := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			message = body.Error
		}
		return nil, &recipe.UpstreamError{Status: resp.StatusCode, Message: message}
	}

	return data, nil
}
