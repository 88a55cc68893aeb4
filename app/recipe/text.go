package recipe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips the provider's HTML markup from summaries and instructions.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseSpaces(html)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml(" ")

	return collapseSpaces(doc.Text())
}

// Steps splits instructions into individual steps. List items win over
// paragraphs; unstructured text comes back as a single step.
func Steps(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{collapseSpaces(html)}
	}

	for _, selector := range []string{"li", "p"} {
		var steps []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := collapseSpaces(s.Text()); text != "" {
				steps = append(steps, text)
			}
		})
		if len(steps) > 0 {
			return steps
		}
	}

	if text := collapseSpaces(doc.Text()); text != "" {
		return []string{text}
	}
	return nil
}

// Describe renders an ingredient with its metric measure when known.
func (i Ingredient) Describe() string {
	if i.Measures == nil || i.Measures.Metric == nil || i.Measures.Metric.Amount == 0 {
		return i.Original
	}

	m := i.Measures.Metric
	amount := strconv.FormatFloat(m.Amount, 'f', -1, 64)
	if m.UnitShort == "" {
		return fmt.Sprintf("%s (%s)", i.Original, amount)
	}
	return fmt.Sprintf("%s (%s %s)", i.Original, amount, m.UnitShort)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
