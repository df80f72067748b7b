package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/robinvdvleuten/cgt/formatter"
)

//go:embed templates/index.html
var templates embed.FS

type indexData struct {
	Title     string
	Version   string
	CommitSHA string
	Report    template.HTML
	Error     string
}

// mountIndex serves the report page at the root.
func (s *Server) mountIndex(mux *http.ServeMux) error {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return fmt.Errorf("failed to parse index template: %w", err)
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		s.handleIndex(w, r, tmpl)
	})
	return nil
}

// handleIndex renders every tax year and the holdings as one HTML page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, tmpl *template.Template) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := indexData{
		Title:     "Capital gains",
		Version:   s.Version,
		CommitSHA: s.CommitSHA,
	}
	if s.lastErr != nil {
		data.Error = s.lastErr.Error()
	}

	if s.calc != nil {
		report, err := s.markdown(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		html, err := formatter.RenderHTML(report)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Report = template.HTML(html) // goldmark drops raw HTML unless WithUnsafe is set
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// markdown builds the report for every tax year, newest first.
func (s *Server) markdown(r *http.Request) (string, error) {
	doc := formatter.Document{}

	years := s.calc.TaxYears()
	for i := len(years) - 1; i >= 0; i-- {
		cg, err := s.calc.ReportCapitalGains(years[i])
		if err != nil {
			return "", err
		}
		doc.CapitalGains = append(doc.CapitalGains, cg)
		doc.Income = append(doc.Income, s.calc.ReportIncome(years[i]))
	}

	holdings, err := s.calc.ReportHoldings(r.Context(), s.valuer)
	if err != nil {
		return "", err
	}
	if len(holdings.Rows) > 0 {
		doc.Holdings = holdings
	}

	return s.reportFormatter().Markdown(doc), nil
}

func (s *Server) reportFormatter() *formatter.Formatter {
	return formatter.New(formatter.FromConfig(s.config)...)
}

