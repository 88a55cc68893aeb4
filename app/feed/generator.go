package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

const (
	// HighlightCategory marks the day's featured recipe in the feed.
	HighlightCategory = "highlight"

	recipeGUIDPrefix = "recipe-"
	readyInFormat    = "ready-in-%d-min"
)

// Generator renders a day's picks as an RSS 2.0 document.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(picks database.DailyPicks) (string, error) {
	if picks.Date == "" {
		return "", fmt.Errorf("daily picks have no date")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("Recipe picks for %s", picks.Date), 4)
	g.writeElement(&buf, "link", g.baseURL+"/", 4)
	g.writeElement(&buf, "description", "Daily recipe picks with a featured highlight", 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.baseURL+"/feeds/daily")))

	fetchedAt := cmp.Or(picks.FetchedAt, time.Now().In(time.Local))
	g.writeElement(&buf, "lastBuildDate", fetchedAt.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Recipe-Planner/%s", g.version), 4)
	g.writeElement(&buf, "language", "en", 4)

	if picks.Highlight != nil {
		g.writeItem(&buf, *picks.Highlight, fetchedAt, true)
	}
	for _, r := range picks.Recipes {
		g.writeItem(&buf, r, fetchedAt, false)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, r recipe.Recipe, publishedAt time.Time, highlight bool) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(fmt.Sprintf("%s%d", recipeGUIDPrefix, r.ID)))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", r.Title, 6)
	g.writeElement(buf, "link", cmp.Or(r.SourceURL, fmt.Sprintf("%s/api/recipes/%d", g.baseURL, r.ID)), 6)
	g.writeElement(buf, "description", cmp.Or(recipe.PlainText(r.Summary), "No description available"), 6)
	g.writeElement(buf, "pubDate", publishedAt.Format(time.RFC1123Z), 6)

	if highlight {
		g.writeElement(buf, "category", HighlightCategory, 6)
	}
	if r.ReadyInMinutes != nil {
		g.writeElement(buf, "category", fmt.Sprintf(readyInFormat, *r.ReadyInMinutes), 6)
	}

	buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
		html.EscapeString(r.ImageOrFallback()),
		imageType(r.ImageOrFallback())))

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func imageType(url string) string {
	switch lower := strings.ToLower(url); {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
