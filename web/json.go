package web

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/robinvdvleuten/cgt/errors"
	"github.com/robinvdvleuten/cgt/tax"
)

// writeJSONResponse writes a JSON response to the http.ResponseWriter.
// If encoding fails, it writes an error response.
func writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Error errors.ErrorJSON `json:"error"`
}

// writeJSONError writes err as structured JSON with the given status.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{Error: errors.NewJSONFormatter().ToJSON(err)})
}

// errStatus picks the HTTP status for an error from the calculator.
func errStatus(err error) int {
	var unsupported *tax.UnsupportedTaxYearError
	if stdErrors.As(err, &unsupported) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// yearParam reads the year query parameter. Without one it falls back to
// the latest tax year with events.
func yearParam(r *http.Request, calc *tax.Calculator) (int, error) {
	if value := r.URL.Query().Get("year"); value != "" {
		year, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid year %q", value)
		}
		return year, nil
	}

	years := calc.TaxYears()
	if len(years) == 0 {
		return 0, fmt.Errorf("no tax years available")
	}
	return years[len(years)-1], nil
}

func yearLabel(year int) string {
	return fmt.Sprintf("%d/%02d", year-1, year%100)
}
