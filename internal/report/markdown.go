package report

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/ratios"
)

//go:embed templates/*.md
var templates embed.FS

var funcs = template.FuncMap{
	"fixed": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"cell":  cell,
}

// cell makes free text safe inside a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// CompositionView is the data behind the composition report.
type CompositionView struct {
	Period domain.Period
	Slices []ratios.CompositionSlice
}

// RenderIndicators renders the ordered ratio table as markdown.
func RenderIndicators(d Dashboard) (string, error) {
	return renderTemplate("indicators.md", d)
}

// RenderRecords renders stored records as a markdown table.
func RenderRecords(records []domain.AccountRecord) (string, error) {
	return renderTemplate("records.md", records)
}

// RenderComposition renders a period's current-asset composition.
func RenderComposition(v CompositionView) (string, error) {
	return renderTemplate("composition.md", v)
}

// RenderTerminal styles markdown for a terminal of the given width.
func RenderTerminal(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("RenderTerminal: creating renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("RenderTerminal: rendering: %w", err)
	}
	return out, nil
}

func renderTemplate(file string, data any) (string, error) {
	content, err := fs.ReadFile(templates, "templates/"+file)
	if err != nil {
		return "", fmt.Errorf("reading template %q: %w", file, err)
	}

	tmpl, err := template.New(file).Funcs(funcs).Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("parsing template %q: %w", file, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing template %q: %w", file, err)
	}
	return b.String(), nil
}
