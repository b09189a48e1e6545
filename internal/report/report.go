package report

import (
	"fmt"
	"strings"

	"histfit/domain/results"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Generator renders fit and scan records as markdown reports, optionally
// converted to HTML for the web UI.
type Generator struct{}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// FitMarkdown renders a parameter table plus fit summary.
func (g *Generator) FitMarkdown(record *results.FitRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Fit %s\n\n", record.ID)
	if poi, ok := record.POIEstimate(); ok {
		fmt.Fprintf(&b, "Best-fit %s = %.4f ± %.4f\n\n", poi.Name, poi.Value, poi.Uncertainty)
	}
	fmt.Fprintf(&b, "-2 log L = %.4f (runtime %d ms)\n\n", record.TwoNLL, record.RuntimeMs)

	b.WriteString("| Parameter | Value | Uncertainty | Fixed |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, p := range record.Parameters {
		name := p.Name
		if p.IsPOI {
			name += " (POI)"
		}
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %v |\n", name, p.Value, p.Uncertainty, p.Fixed)
	}

	if len(record.Pulls) > 0 {
		b.WriteString("\n## Pulls\n\n")
		b.WriteString("| Parameter | Pull |\n")
		b.WriteString("|---|---|\n")
		for _, p := range record.Pulls {
			fmt.Fprintf(&b, "| %s | %.3f |\n", p.Name, p.Pull)
		}
	}

	return b.String()
}

// ScanMarkdown renders a profile-likelihood curve table.
func (g *Generator) ScanMarkdown(record *results.ScanRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Profile scan of %s (scan %s)\n\n", record.Parameter, record.ID)
	fmt.Fprintf(&b, "Unconditional best fit: %s = %.4f, -2 log L = %.4f\n\n",
		record.Parameter, record.BestFitPOI, record.BestFitTwoNLL)

	fmt.Fprintf(&b, "| %s | delta(-2 log L) |\n", record.Parameter)
	b.WriteString("|---|---|\n")
	for _, p := range record.Points {
		fmt.Fprintf(&b, "| %.4f | %.4f |\n", p.Value, p.DeltaNLL)
	}

	return b.String()
}

// RenderHTML converts a markdown report to an HTML fragment.
func (g *Generator) RenderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
