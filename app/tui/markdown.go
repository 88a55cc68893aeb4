package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// RecipeMarkdown lays a recipe out as Markdown for the detail view.
func RecipeMarkdown(r recipe.Recipe) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)

	var facts []string
	if r.ReadyInMinutes != nil {
		facts = append(facts, fmt.Sprintf("**Ready in** %d min", *r.ReadyInMinutes))
	}
	if r.Servings != nil {
		facts = append(facts, fmt.Sprintf("**Servings** %d", *r.Servings))
	}
	if len(facts) > 0 {
		b.WriteString(strings.Join(facts, " · "))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Image: %s\n\n", r.ImageOrFallback())

	if summary := recipe.PlainText(r.Summary); summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Ingredients\n\n")
	if len(r.ExtendedIngredients) == 0 {
		b.WriteString("_No ingredients listed._\n\n")
	}
	for _, ing := range r.ExtendedIngredients {
		fmt.Fprintf(&b, "- %s\n", ing.Describe())
	}
	if len(r.ExtendedIngredients) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Instructions\n\n")
	steps := recipe.Steps(r.Instructions)
	if len(steps) == 0 {
		b.WriteString("_No instructions available._\n\n")
	}
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	if r.SourceURL != "" {
		fmt.Fprintf(&b, "\nSource: %s\n", r.SourceURL)
	}

	return b.String()
}

// renderGlamour renders markdown for a terminal of the given width.
func renderGlamour(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
