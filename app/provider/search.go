package provider

import (
	"context"
	"strings"

	"github.com/lysyi3m/recipe-planner/app/recipe"
	"golang.org/x/sync/errgroup"
)

// SearchByText runs a keyword search and then fetches full details for each
// match concurrently. Results keep the match order. A single failed detail
// lookup fails the whole search.
func (c *Client) SearchByText(ctx context.Context, term string) ([]recipe.Recipe, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &recipe.ValidationError{Field: "query", Message: "Missing search query"}
	}

	matches, err := c.ComplexSearch(ctx, term)
	if err != nil {
		return nil, err
	}

	return c.details(ctx, matches)
}

func (c *Client) details(ctx context.Context, matches []recipe.SearchMatch) ([]recipe.Recipe, error) {
	results := make([]recipe.Recipe, len(matches))
	if len(matches) == 0 {
		return results, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.detailConcurrency)

	for i, match := range matches {
		eg.Go(func() error {
			r, err := c.Information(egCtx, match.ID)
			if err != nil {
				return &recipe.DetailError{ID: match.ID, Err: err}
			}
			results[i] = *r
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
