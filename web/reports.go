package web

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/cgt/tax"
)

// DisposalResponse is one capital gains event.
type DisposalResponse struct {
	Date            string          `json:"date"`
	Asset           string          `json:"asset"`
	Rule            string          `json:"rule"`
	Quantity        decimal.Decimal `json:"quantity"`
	Cost            decimal.Decimal `json:"cost"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	Gain            decimal.Decimal `json:"gain"`
	AcquisitionDate *string         `json:"acquisitionDate,omitempty"`
}

// CapitalGainsResponse is the JSON response structure for the capital gains endpoint.
type CapitalGainsResponse struct {
	Year         int                `json:"year"`
	Label        string             `json:"label"`
	Disposals    []DisposalResponse `json:"disposals"`
	Count        int                `json:"count"`
	Cost         decimal.Decimal    `json:"cost"`
	Proceeds     decimal.Decimal    `json:"proceeds"`
	Gain         decimal.Decimal    `json:"gain"`
	Gains        decimal.Decimal    `json:"gains"`
	Losses       decimal.Decimal    `json:"losses"`
	Allowance    decimal.Decimal    `json:"allowance"`
	TaxableGain  decimal.Decimal    `json:"taxableGain"`
	Rate         decimal.Decimal    `json:"rate"`
	EstimatedTax decimal.Decimal    `json:"estimatedTax"`
}

// IncomeEventResponse is one income receipt.
type IncomeEventResponse struct {
	Date     string          `json:"date"`
	Asset    string          `json:"asset"`
	Type     string          `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// IncomeResponse is the JSON response structure for the income endpoint.
type IncomeResponse struct {
	Year   int                        `json:"year"`
	Label  string                     `json:"label"`
	Events []IncomeEventResponse      `json:"events"`
	ByType map[string]decimal.Decimal `json:"byType"`
	Total  decimal.Decimal            `json:"total"`
}

// HoldingResponse is the position in one asset.
type HoldingResponse struct {
	Asset    string           `json:"asset"`
	Name     string           `json:"name,omitempty"`
	Source   string           `json:"source,omitempty"`
	Quantity decimal.Decimal  `json:"quantity"`
	Cost     decimal.Decimal  `json:"cost"`
	Value    *decimal.Decimal `json:"value,omitempty"`
	Gain     *decimal.Decimal `json:"gain,omitempty"`
}

// HoldingsResponse is the JSON response structure for the holdings endpoint.
type HoldingsResponse struct {
	Holdings   []HoldingResponse `json:"holdings"`
	Cost       decimal.Decimal   `json:"cost"`
	Value      decimal.Decimal   `json:"value"`
	Incomplete bool              `json:"incomplete"`
}

// calculator returns the current result, or writes an error when there is none.
func (s *Server) calculator(w http.ResponseWriter) *tax.Calculator {
	if s.calc == nil {
		http.Error(w, "transactions not loaded", http.StatusServiceUnavailable)
	}
	return s.calc
}

func (s *Server) date(t time.Time) string {
	return t.In(s.config.Location).Format(time.DateOnly)
}

// handleGetCapitalGains handles GET requests to /api/capital-gains.
//
// Query parameters:
//   - year: tax year, named after the year it ends in. Defaults to the latest year.
func (s *Server) handleGetCapitalGains(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc := s.calculator(w)
	if calc == nil {
		return
	}

	year, err := yearParam(r, calc)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	report, err := calc.ReportCapitalGains(year)
	if err != nil {
		writeJSONError(w, errStatus(err), err)
		return
	}

	prec := s.config.Precision()
	response := &CapitalGainsResponse{
		Year:         report.Year,
		Label:        yearLabel(report.Year),
		Disposals:    make([]DisposalResponse, 0, report.Count()),
		Count:        report.Count(),
		Cost:         report.Cost.Round(prec),
		Proceeds:     report.Proceeds.Round(prec),
		Gain:         report.Gain.Round(prec),
		Gains:        report.Gains.Round(prec),
		Losses:       report.Losses.Round(prec),
		Allowance:    report.Allowance,
		TaxableGain:  report.TaxableGain.Round(prec),
		Rate:         report.Rate,
		EstimatedTax: report.EstimatedTax.Round(prec),
	}
	for _, d := range report.Disposals {
		disposal := DisposalResponse{
			Date:     s.date(d.Date()),
			Asset:    d.Asset(),
			Rule:     string(d.Disposal),
			Quantity: d.Quantity,
			Cost:     d.Cost.Round(prec),
			Proceeds: d.Proceeds.Round(prec),
			Gain:     d.Gain.Round(prec),
		}
		if d.AcquisitionDate != nil {
			acquired := s.date(*d.AcquisitionDate)
			disposal.AcquisitionDate = &acquired
		}
		response.Disposals = append(response.Disposals, disposal)
	}

	writeJSONResponse(w, response)
}

// handleGetIncome handles GET requests to /api/income.
//
// Query parameters:
//   - year: tax year, named after the year it ends in. Defaults to the latest year.
func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc := s.calculator(w)
	if calc == nil {
		return
	}

	year, err := yearParam(r, calc)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	report := calc.ReportIncome(year)
	prec := s.config.Precision()

	response := &IncomeResponse{
		Year:   report.Year,
		Label:  yearLabel(report.Year),
		Events: make([]IncomeEventResponse, 0, len(report.Events)),
		ByType: make(map[string]decimal.Decimal, len(report.ByType)),
		Total:  report.Total.Round(prec),
	}
	for _, e := range report.Events {
		response.Events = append(response.Events, IncomeEventResponse{
			Date:     s.date(e.Date()),
			Asset:    e.Asset(),
			Type:     string(e.Type),
			Quantity: e.Quantity,
			Amount:   e.Amount.Round(prec),
		})
	}
	for typ, total := range report.ByType {
		response.ByType[string(typ)] = total.Round(prec)
	}

	writeJSONResponse(w, response)
}

// handleGetHoldings handles GET requests to /api/holdings.
// Values come from the configured price table.
func (s *Server) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calc := s.calculator(w)
	if calc == nil {
		return
	}

	report, err := calc.ReportHoldings(r.Context(), s.valuer)
	if err != nil {
		writeJSONError(w, errStatus(err), err)
		return
	}

	prec := s.config.Precision()
	response := &HoldingsResponse{
		Holdings:   make([]HoldingResponse, 0, len(report.Rows)),
		Cost:       report.Cost,
		Value:      report.Value.Round(prec),
		Incomplete: report.Incomplete,
	}
	for _, row := range report.Rows {
		holding := HoldingResponse{
			Asset:    row.Asset,
			Name:     row.Name,
			Source:   row.Source,
			Quantity: row.Quantity,
			Cost:     row.Cost,
		}
		if row.Value.Valid {
			value := row.Value.Decimal.Round(prec)
			gain := row.Gain().Decimal.Round(prec)
			holding.Value = &value
			holding.Gain = &gain
		}
		response.Holdings = append(response.Holdings, holding)
	}

	writeJSONResponse(w, response)
}
