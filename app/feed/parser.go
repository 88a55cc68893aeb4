package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Parser reads a daily picks feed back into items.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}
	if feed.UpdatedParsed != nil {
		metadata.LastBuildDate = feed.UpdatedParsed
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Categories:  item.Categories,
		Highlight:   slices.Contains(item.Categories, HighlightCategory),
	}

	if id, err := strconv.Atoi(strings.TrimPrefix(normalized.GUID, recipeGUIDPrefix)); err == nil {
		normalized.RecipeID = id
	}

	for _, category := range item.Categories {
		var minutes int
		if _, err := fmt.Sscanf(category, readyInFormat, &minutes); err == nil {
			normalized.ReadyInMinutes = &minutes
			break
		}
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	}

	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		normalized.ImageURL = item.Enclosures[0].URL
	}

	return normalized
}
