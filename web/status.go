package web

import (
	"net/http"
	"time"

	"github.com/robinvdvleuten/cgt/errors"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/robinvdvleuten/cgt/telemetry"
)

// StatusResponse describes the server and the last calculation.
type StatusResponse struct {
	Version   string             `json:"version"`
	CommitSHA string             `json:"commitSHA"`
	Files     []string           `json:"files"`
	LoadedAt  *time.Time         `json:"loadedAt,omitempty"`
	Errors    []errors.ErrorJSON `json:"errors"`
}

// YearInfo is one tax year with events.
type YearInfo struct {
	Year  int    `json:"year"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// YearsResponse is the JSON response structure for the years endpoint.
type YearsResponse struct {
	Years []YearInfo `json:"years"`
}

// TimingsResponse holds the stage timings of the last calculation.
type TimingsResponse struct {
	Stages []telemetry.Stage `json:"stages"`
}

// handleGetStatus handles GET requests to /api/status.
// A failed reload shows up in errors while the previous result stays served.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := &StatusResponse{
		Version:   s.Version,
		CommitSHA: s.CommitSHA,
		Files:     append([]string{}, s.files...),
		Errors:    []errors.ErrorJSON{},
	}
	if !s.loadedAt.IsZero() {
		loadedAt := s.loadedAt
		response.LoadedAt = &loadedAt
	}
	if s.lastErr != nil {
		response.Errors = errors.NewJSONFormatter().FormatAllToSlice([]error{s.lastErr})
	}

	writeJSONResponse(w, response)
}

// handleGetYears handles GET requests to /api/years.
// Returns every tax year with events, oldest first.
func (s *Server) handleGetYears(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc := s.calculator(w)
	if calc == nil {
		return
	}

	loc := s.config.Location
	years := calc.TaxYears()
	response := &YearsResponse{Years: make([]YearInfo, 0, len(years))}
	for _, year := range years {
		response.Years = append(response.Years, YearInfo{
			Year:  year,
			Label: yearLabel(year),
			Start: tax.TaxYearStart(year, loc).Format(time.DateOnly),
			End:   tax.TaxYearEnd(year, loc).Format(time.DateOnly),
		})
	}

	writeJSONResponse(w, response)
}

// handleGetTimings handles GET requests to /api/timings.
func (s *Server) handleGetTimings(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	writeJSONResponse(w, &TimingsResponse{Stages: append([]telemetry.Stage{}, s.timings...)})
}
