// Package renderer turns quotes, portfolios, trades, profit summaries,
// snapshots and reports into markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/tradesim"
)

//go:embed templates/*.md
var templates embed.FS

// funcs are available in every template.
var funcs = template.FuncMap{
	"ts":   timestamp,
	"join": strings.Join,
	"pct":  func(ratio float64) string { return fmt.Sprintf("%.2f%%", ratio*100) },
	"num":  func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"market": func(q tradesim.Quote) string {
		s := "closed"
		if q.MarketOpen {
			s = "open"
		}
		if q.MarketState != "" {
			s += " (" + q.MarketState + ")"
		}
		return s
	},
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateTime) + " UTC"
}

// RenderQuote renders the latest quote of a ticker.
func RenderQuote(q tradesim.Quote) string {
	return renderTemplate("quote", "quote.md", nil, q)
}

// RenderPortfolio renders cash, holdings and values.
func RenderPortfolio(p *Portfolio) string {
	partials := map[string]string{
		"positions_table": "positions_table.md",
	}
	return renderTemplate("portfolio", "portfolio.md", partials, p)
}

// RenderHistory renders the transaction history, oldest first.
func RenderHistory(txs []tradesim.Transaction) string {
	partials := map[string]string{
		"transactions_table": "transactions_table.md",
	}
	return renderTemplate("history", "history.md", partials, txs)
}

// RenderPL renders a profit and loss summary.
func RenderPL(s tradesim.PLSummary) string {
	partials := map[string]string{
		"pl_table": "pl_table.md",
	}
	return renderTemplate("pl", "pl.md", partials, s)
}

// RenderSnapshots renders the snapshot history and its statistics.
func RenderSnapshots(h *SnapshotHistory) string {
	partials := map[string]string{
		"snapshot_stats": "snapshot_stats.md",
	}
	return renderTemplate("snapshots", "snapshots.md", partials, h)
}

// RenderReport renders the trading report.
func RenderReport(r *Report) string {
	partials := map[string]string{
		"positions_table":    "positions_table.md",
		"pl_table":           "pl_table.md",
		"transactions_table": "transactions_table.md",
		"snapshot_stats":     "snapshot_stats.md",
	}
	return renderTemplate("report", "report.md", partials, r)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, "templates/"+mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, "templates/"+file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
