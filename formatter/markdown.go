package formatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Document is everything a markdown report can contain. Nil and empty parts
// are left out.
type Document struct {
	Title        string
	CapitalGains []*tax.CapitalGainsReport
	Income       []*tax.IncomeReport
	Holdings     *tax.HoldingsReport
}

// Markdown renders doc as GitHub flavoured markdown.
func (f *Formatter) Markdown(doc Document) string {
	var b strings.Builder

	if doc.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	}

	for _, r := range doc.CapitalGains {
		fmt.Fprintf(&b, "## Capital gains %d/%02d\n\n", r.Year-1, r.Year%100)
		if r.Count() == 0 {
			b.WriteString("No disposals.\n\n")
		} else {
			b.WriteString("| Date | Asset | Rule | Quantity | Cost | Proceeds | Gain | Acquired |\n")
			b.WriteString("|---|---|---|---:|---:|---:|---:|---|\n")
			for _, d := range r.Disposals {
				acquired := ""
				if d.AcquisitionDate != nil {
					acquired = f.Date(*d.AcquisitionDate)
				}
				fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
					f.Date(d.Date()), d.Asset(), d.Disposal, f.Quantity(d.Quantity),
					f.Money(d.Cost), f.Money(d.Proceeds), f.Money(d.Gain), acquired)
			}
			b.WriteString("\n")
		}

		b.WriteString("| | |\n|---|---:|\n")
		fmt.Fprintf(&b, "| Disposals | %d |\n", r.Count())
		fmt.Fprintf(&b, "| Total cost | %s |\n", f.Money(r.Cost))
		fmt.Fprintf(&b, "| Total proceeds | %s |\n", f.Money(r.Proceeds))
		fmt.Fprintf(&b, "| Net gain | %s |\n", f.Money(r.Gain))
		fmt.Fprintf(&b, "| Annual allowance | %s |\n", f.Money(r.Allowance))
		fmt.Fprintf(&b, "| Taxable gain | %s |\n", f.Money(r.TaxableGain))
		fmt.Fprintf(&b, "| **Estimated tax (%s%%)** | **%s** |\n\n", r.Rate, f.Money(r.EstimatedTax))
	}

	for _, r := range doc.Income {
		if len(r.Events) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## Income %d/%02d\n\n", r.Year-1, r.Year%100)
		b.WriteString("| Date | Asset | Type | Quantity | Amount |\n")
		b.WriteString("|---|---|---|---:|---:|\n")
		for _, e := range r.Events {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				f.Date(e.Date()), e.Asset(), e.Type, f.Quantity(e.Quantity), f.Money(e.Amount))
		}
		fmt.Fprintf(&b, "| **Total** | | | | **%s** |\n\n", f.Money(r.Total))
	}

	if doc.Holdings != nil {
		b.WriteString("## Holdings\n\n")
		b.WriteString("| Asset | Name | Quantity | Cost | Value | Source |\n")
		b.WriteString("|---|---|---:|---:|---:|---|\n")
		for _, row := range doc.Holdings.Rows {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				row.Asset, row.Name, f.Quantity(row.Quantity), f.Money(row.Cost), f.NullMoney(row.Value), row.Source)
		}
		fmt.Fprintf(&b, "| **Total** | | | %s | %s | |\n\n", f.Money(doc.Holdings.Cost), f.Money(doc.Holdings.Value))
	}

	return b.String()
}

// RenderTerminal renders markdown for a terminal with glamour. An empty style
// picks one from the terminal background; "notty" gives plain text.
func RenderTerminal(markdown, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return r.Render(markdown)
}

var htmlRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// RenderHTML converts markdown to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}
