package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/cgt/tax"
)

const transactions = `type,asset,quantity,value,timestamp
BUY,BTC,1,1000,2020-01-01 10:00
SELL,BTC,0.5,1500,2020-06-01 10:00
BUY,ETH,2,400,2020-07-01 09:00
SELL,ETH,1,150,2020-07-01 16:00
MINING,ETH,0.1,30,2020-08-01 12:00
`

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	assert.NoError(t, os.WriteFile(path, []byte(transactions), 0o644))

	cfg := tax.NewConfig()
	cfg.Prices["BTC"] = dec("30000")

	server := NewWithVersion(8080, cfg, "1.0.0", "abc123", path)
	assert.NoError(t, server.recompute(context.Background()))
	return server, path
}

func get(t *testing.T, mux *http.ServeMux, target string, response any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if response != nil && rec.Code == http.StatusOK {
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(response))
	}
	return rec
}

func TestAPIYears(t *testing.T) {
	server, _ := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	var response YearsResponse
	rec := get(t, mux, "/api/years", &response)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []YearInfo{{Year: 2021, Label: "2020/21", Start: "2020-04-06", End: "2021-04-05"}}, response.Years)
}

func TestAPICapitalGains(t *testing.T) {
	server, _ := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	t.Run("DefaultsToLatestYear", func(t *testing.T) {
		var response CapitalGainsResponse
		rec := get(t, mux, "/api/capital-gains", &response)
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 2021, response.Year)
		assert.Equal(t, "2020/21", response.Label)
		assert.Equal(t, 2, response.Count)
		assertDecimal(t, "950", response.Gain)
		assertDecimal(t, "1000", response.Gains)
		assertDecimal(t, "-50", response.Losses)
		assertDecimal(t, "12300", response.Allowance)
		assertDecimal(t, "0", response.EstimatedTax)

		btc := response.Disposals[0]
		assert.Equal(t, "BTC", btc.Asset)
		assert.Equal(t, "SECTION_104", btc.Rule)
		assert.Equal(t, "2020-06-01", btc.Date)
		assertDecimal(t, "500", btc.Cost)
		assert.True(t, btc.AcquisitionDate == nil)

		eth := response.Disposals[1]
		assert.Equal(t, "SAME_DAY", eth.Rule)
		assertDecimal(t, "200", eth.Cost)
		assertDecimal(t, "-50", eth.Gain)
		assert.Equal(t, "2020-07-01", *eth.AcquisitionDate)
	})

	t.Run("ExplicitYear", func(t *testing.T) {
		var response CapitalGainsResponse
		rec := get(t, mux, "/api/capital-gains?year=2020", &response)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, response.Count)
		assert.Equal(t, 0, len(response.Disposals))
	})

	t.Run("InvalidYear", func(t *testing.T) {
		rec := get(t, mux, "/api/capital-gains?year=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnsupportedYear", func(t *testing.T) {
		rec := get(t, mux, "/api/capital-gains?year=2008", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var response ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "*tax.UnsupportedTaxYearError", response.Error.Type)
		assert.Contains(t, response.Error.Message, "2008")
	})
}

func TestAPIIncome(t *testing.T) {
	server, _ := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	var response IncomeResponse
	rec := get(t, mux, "/api/income?year=2021", &response)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, len(response.Events))
	assert.Equal(t, "MINING", response.Events[0].Type)
	assert.Equal(t, "2020-08-01", response.Events[0].Date)
	assertDecimal(t, "30", response.ByType["MINING"])
	assertDecimal(t, "30", response.Total)
}

func TestAPIHoldings(t *testing.T) {
	server, _ := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	var response HoldingsResponse
	rec := get(t, mux, "/api/holdings", &response)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, len(response.Holdings))
	assert.True(t, response.Incomplete)
	assertDecimal(t, "730", response.Cost)
	assertDecimal(t, "15000", response.Value)

	btc := response.Holdings[0]
	assert.Equal(t, "BTC", btc.Asset)
	assert.Equal(t, "config", btc.Source)
	assertDecimal(t, "0.5", btc.Quantity)
	assertDecimal(t, "15000", *btc.Value)
	assertDecimal(t, "14500", *btc.Gain)

	eth := response.Holdings[1]
	assertDecimal(t, "1.1", eth.Quantity)
	assertDecimal(t, "230", eth.Cost)
	assert.True(t, eth.Value == nil)
}

func TestAPIStatusAndTimings(t *testing.T) {
	server, path := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	var status StatusResponse
	rec := get(t, mux, "/api/status", &status)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.0.0", status.Version)
	assert.Equal(t, "abc123", status.CommitSHA)
	assert.Equal(t, []string{path}, status.Files)
	assert.Equal(t, 0, len(status.Errors))
	assert.True(t, status.LoadedAt != nil)

	var timings TimingsResponse
	rec = get(t, mux, "/api/timings", &timings)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, len(timings.Stages) > 1)
	assert.Equal(t, "web.recompute", timings.Stages[0].Name)
	assert.Equal(t, 0, timings.Stages[0].Depth)

	var names []string
	for _, stage := range timings.Stages {
		names = append(names, stage.Name)
	}
	assert.Contains(t, strings.Join(names, "\n"), "tax.match SAME_DAY")
}

func TestReloadFailureKeepsResult(t *testing.T) {
	server, path := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	broken := transactions + "GIFT,BTC,1,1,2021-01-01\n"
	assert.NoError(t, os.WriteFile(path, []byte(broken), 0o644))
	assert.Error(t, server.recompute(context.Background()))

	var status StatusResponse
	get(t, mux, "/api/status", &status)
	assert.Equal(t, 1, len(status.Errors))
	assert.Equal(t, path, status.Errors[0].Position.Filename)
	assert.Equal(t, 7, status.Errors[0].Position.Line)

	var response CapitalGainsResponse
	rec := get(t, mux, "/api/capital-gains", &response)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, response.Count)

	page := get(t, mux, "/", nil)
	assert.Contains(t, page.Body.String(), "invalid type")
}

func TestNotLoaded(t *testing.T) {
	server := New(8080, nil, "missing.csv")
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	rec := get(t, mux, "/api/years", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	page := get(t, mux, "/", nil)
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "No transactions loaded.")
}

func TestStartRequiresInputs(t *testing.T) {
	err := New(0, nil).Start(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one transaction file")
}

func TestIndex(t *testing.T) {
	server, _ := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	rec := get(t, mux, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "Capital gains 2020/21")
	assert.Contains(t, body, "SECTION_104")
	assert.Contains(t, body, "Holdings")
	assert.Contains(t, body, "cgt 1.0.0 (abc123)")

	rec = get(t, mux, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSSE(t *testing.T) {
	server, _ := newTestServer(t)
	mux, err := server.setupRouter()
	assert.NoError(t, err)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	assert.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "data: connected\n", line)

	// the client is registered before the connected event is written
	server.broadcast("reload")

	_, err = reader.ReadString('\n') // blank line ending the first event
	assert.NoError(t, err)
	line, err = reader.ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "data: reload\n", line)
}

func TestWatcherRecalculates(t *testing.T) {
	server, path := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan string, 10)
	server.sseMu.Lock()
	server.sseClients[events] = struct{}{}
	server.sseMu.Unlock()

	assert.NoError(t, server.startWatcher(ctx))

	more := transactions + "SELL,BTC,0.25,2000,2021-06-01 10:00\n"
	assert.NoError(t, os.WriteFile(path, []byte(more), 0o644))

	select {
	case event := <-events:
		assert.Equal(t, "reload", event)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	server.mu.RLock()
	years := server.calc.TaxYears()
	server.mu.RUnlock()
	assert.Equal(t, []int{2021, 2022}, years)
}
