package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/database"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
	"github.com/tantralabs/optionlab/settings"
)

type failingProvider struct{}

func (failingProvider) GetBars(ctx context.Context, symbol string, start time.Time, end time.Time) ([]*models.Bar, error) {
	return nil, errors.New("feed offline")
}

// runningRejectStore refuses to record that a run has started.
type runningRejectStore struct {
	*database.MemoryStore
}

func (s runningRejectStore) SaveResult(ctx context.Context, result *models.Result) error {
	if result.Status == models.StatusRunning {
		return errors.New("connection reset")
	}
	return s.MemoryStore.SaveResult(ctx, result)
}

func newTestServer(t *testing.T, provider data.Provider) (*Server, *Handler) {
	t.Helper()
	logger.SetLevel("error")
	config := settings.Default()
	config.StartDate = "2023-01-02"
	config.EndDate = "2023-01-31"
	h := NewHandler(options.NewTheoEngine(), provider, config, database.NewMemoryStore())
	t.Cleanup(h.Close)
	return NewServer(":0", h), h
}

func do(t *testing.T, s *Server, method string, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func checkStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status %d, want %d: %s", w.Code, want, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	w := do(t, s, http.MethodGet, "/health", nil)
	checkStatus(t, w, http.StatusOK)
}

func atmCall() map[string]interface{} {
	return map[string]interface{}{
		"stock_price":    100.0,
		"strike_price":   100.0,
		"time_to_expiry": 1.0,
		"risk_free_rate": 0.05,
		"volatility":     0.2,
		"option_type":    "call",
	}
}

func TestPrice(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	w := do(t, s, http.MethodPost, "/api/v1/options/price", atmCall())
	checkStatus(t, w, http.StatusOK)

	var resp struct {
		OptionPrice  float64 `json:"option_price"`
		RiskFreeRate float64 `json:"risk_free_rate"`
	}
	decode(t, w, &resp)
	if math.Abs(resp.OptionPrice-10.4506) > 1e-3 {
		t.Errorf("price %v, want 10.4506", resp.OptionPrice)
	}
	if resp.RiskFreeRate != 0.05 {
		t.Errorf("rate %v, want 0.05", resp.RiskFreeRate)
	}
}

func TestPriceDefaultsRate(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	body := atmCall()
	delete(body, "risk_free_rate")
	w := do(t, s, http.MethodPost, "/api/v1/options/price", body)
	checkStatus(t, w, http.StatusOK)

	var resp struct {
		RiskFreeRate float64 `json:"risk_free_rate"`
	}
	decode(t, w, &resp)
	if resp.RiskFreeRate != 0.02 {
		t.Errorf("rate %v, want the configured 0.02", resp.RiskFreeRate)
	}
}

func TestPriceRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"stock kind", "option_type", "stock"},
		{"unknown kind", "option_type", "straddle"},
		{"zero stock price", "stock_price", 0},
		{"negative strike", "strike_price", -5},
		{"expired", "time_to_expiry", 0},
		{"volatility too high", "volatility", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := atmCall()
			body[tt.key] = tt.value
			w := do(t, s, http.MethodPost, "/api/v1/options/price", body)
			checkStatus(t, w, http.StatusBadRequest)
		})
	}

	w := do(t, s, http.MethodPost, "/api/v1/options/price", "{not json")
	checkStatus(t, w, http.StatusBadRequest)
}

func TestGreeks(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	w := do(t, s, http.MethodPost, "/api/v1/options/greeks", atmCall())
	checkStatus(t, w, http.StatusOK)

	var resp map[string]interface{}
	decode(t, w, &resp)
	for _, name := range []string{"delta", "gamma", "theta", "vega", "rho"} {
		if _, ok := resp[name]; !ok {
			t.Errorf("missing %s in %v", name, resp)
		}
	}
	if delta := resp["delta"].(float64); math.Abs(delta-0.6368) > 1e-3 {
		t.Errorf("delta %v, want 0.6368", delta)
	}
}

func TestImpliedVolatility(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	body := atmCall()
	delete(body, "volatility")
	body["market_price"] = 10.4506

	w := do(t, s, http.MethodPost, "/api/v1/options/implied-volatility", body)
	checkStatus(t, w, http.StatusOK)
	var resp struct {
		ImpliedVolatility float64 `json:"implied_volatility"`
	}
	decode(t, w, &resp)
	if math.Abs(resp.ImpliedVolatility-0.2) > 1e-3 {
		t.Errorf("iv %v, want 0.2", resp.ImpliedVolatility)
	}

	// A call can never be worth more than the stock.
	body["market_price"] = 150.0
	w = do(t, s, http.MethodPost, "/api/v1/options/implied-volatility", body)
	checkStatus(t, w, http.StatusBadRequest)
}

func TestStrategies(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))

	w := do(t, s, http.MethodGet, "/api/v1/strategies", nil)
	checkStatus(t, w, http.StatusOK)
	var list struct {
		Count      int `json:"count"`
		Strategies []struct {
			ID string `json:"id"`
		} `json:"strategies"`
	}
	decode(t, w, &list)
	if list.Count != 4 || len(list.Strategies) != 4 {
		t.Fatalf("got %d strategies, want 4", list.Count)
	}

	w = do(t, s, http.MethodGet, "/api/v1/strategies/iron_condor", nil)
	checkStatus(t, w, http.StatusOK)

	w = do(t, s, http.MethodGet, "/api/v1/strategies/strangle", nil)
	checkStatus(t, w, http.StatusNotFound)
}

func januaryRun(strategy string) map[string]interface{} {
	return map[string]interface{}{
		"strategy_type":   strategy,
		"symbol":          "spy",
		"start_date":      "2023-01-02",
		"end_date":        "2023-01-31",
		"initial_capital": 50000,
		"parameters": map[string]interface{}{
			"expiration_days": 14,
		},
	}
}

func TestBacktestLifecycle(t *testing.T) {
	s, h := newTestServer(t, data.NewSyntheticProvider(7))

	w := do(t, s, http.MethodPost, "/api/v1/backtests/run", januaryRun("iron_condor"))
	checkStatus(t, w, http.StatusAccepted)
	var started struct {
		ID     string `json:"backtest_id"`
		Status string `json:"status"`
	}
	decode(t, w, &started)
	if started.ID == "" || started.Status != string(models.StatusPending) {
		t.Fatalf("unexpected start response %+v", started)
	}
	h.Wait()

	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID+"/status", nil)
	checkStatus(t, w, http.StatusOK)
	var status struct {
		ID             string  `json:"backtest_id"`
		Status         string  `json:"status"`
		Symbol         string  `json:"symbol"`
		InitialCapital float64 `json:"initial_capital"`
	}
	decode(t, w, &status)
	if status.Status != string(models.StatusCompleted) {
		t.Fatalf("status %s, want completed", status.Status)
	}
	if status.ID != started.ID || status.Symbol != "SPY" || status.InitialCapital != 50000 {
		t.Errorf("unexpected status %+v", status)
	}

	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID, nil)
	checkStatus(t, w, http.StatusOK)
	var result models.Result
	decode(t, w, &result)
	if len(result.EquityCurve) != 22 {
		t.Errorf("%d equity points, want 22 weekdays", len(result.EquityCurve))
	}

	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID+"/equity-curve", nil)
	checkStatus(t, w, http.StatusOK)
	var curve []map[string]interface{}
	decode(t, w, &curve)
	if len(curve) != 22 || curve[0]["date"] != "2023-01-02" {
		t.Errorf("unexpected curve head %v (%d points)", curve[0], len(curve))
	}

	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID+"/trades?limit=1", nil)
	checkStatus(t, w, http.StatusOK)
	var trades struct {
		Total  int                  `json:"total"`
		Trades []models.TradeRecord `json:"trades"`
	}
	decode(t, w, &trades)
	if trades.Total != len(result.Trades) {
		t.Errorf("total %d, want %d", trades.Total, len(result.Trades))
	}
	if len(trades.Trades) > 1 {
		t.Errorf("limit ignored, got %d trades", len(trades.Trades))
	}

	w = do(t, s, http.MethodGet, "/api/v1/backtests", nil)
	checkStatus(t, w, http.StatusOK)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 {
		t.Errorf("listed %d backtests, want 1", list.Count)
	}

	w = do(t, s, http.MethodDelete, "/api/v1/backtests/"+started.ID, nil)
	checkStatus(t, w, http.StatusOK)
	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID, nil)
	checkStatus(t, w, http.StatusNotFound)
	w = do(t, s, http.MethodDelete, "/api/v1/backtests/"+started.ID, nil)
	checkStatus(t, w, http.StatusNotFound)
}

func TestBacktestRejectedRequests(t *testing.T) {
	s, h := newTestServer(t, data.NewSyntheticProvider(7))

	unknown := januaryRun("strangle")
	backwards := januaryRun("covered_call")
	backwards["end_date"] = "2022-12-01"
	badParams := januaryRun("covered_call")
	badParams["parameters"] = map[string]interface{}{"expiration_days": "soon"}
	noSymbol := januaryRun("covered_call")
	delete(noSymbol, "symbol")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown strategy", unknown},
		{"end before start", backwards},
		{"bad parameters", badParams},
		{"missing symbol", noSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/backtests/run", tt.body)
			checkStatus(t, w, http.StatusBadRequest)
		})
	}
	h.Wait()

	w := do(t, s, http.MethodGet, "/api/v1/backtests", nil)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 0 {
		t.Errorf("rejected requests stored %d results", list.Count)
	}
}

func TestBacktestFailureIsRecorded(t *testing.T) {
	s, h := newTestServer(t, failingProvider{})

	w := do(t, s, http.MethodPost, "/api/v1/backtests/run", januaryRun("covered_call"))
	checkStatus(t, w, http.StatusAccepted)
	var started struct {
		ID string `json:"backtest_id"`
	}
	decode(t, w, &started)
	h.Wait()

	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID+"/status", nil)
	checkStatus(t, w, http.StatusOK)
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	decode(t, w, &status)
	if status.Status != string(models.StatusFailed) || status.Error == "" {
		t.Errorf("got %+v, want a failed run with its error", status)
	}
}

func TestBacktestStartFailureIsRecorded(t *testing.T) {
	logger.SetLevel("error")
	config := settings.Default()
	config.StartDate = "2023-01-02"
	config.EndDate = "2023-01-31"
	h := NewHandler(options.NewTheoEngine(), data.NewSyntheticProvider(7), config, runningRejectStore{database.NewMemoryStore()})
	t.Cleanup(h.Close)
	s := NewServer(":0", h)

	w := do(t, s, http.MethodPost, "/api/v1/backtests/run", januaryRun("iron_condor"))
	checkStatus(t, w, http.StatusAccepted)
	var started struct {
		ID string `json:"backtest_id"`
	}
	decode(t, w, &started)
	h.Wait()

	w = do(t, s, http.MethodGet, "/api/v1/backtests/"+started.ID+"/status", nil)
	checkStatus(t, w, http.StatusOK)
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	decode(t, w, &status)
	if status.Status != string(models.StatusFailed) || status.Error != "connection reset" {
		t.Errorf("got %+v, want a failed run", status)
	}
}

func TestListBacktestsBadPaging(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(1))
	for _, query := range []string{"?limit=ten", "?offset=-1"} {
		w := do(t, s, http.MethodGet, "/api/v1/backtests"+query, nil)
		checkStatus(t, w, http.StatusBadRequest)
	}
}

func TestVolatility(t *testing.T) {
	s, _ := newTestServer(t, data.NewSyntheticProvider(3))

	w := do(t, s, http.MethodGet, "/api/v1/market-data/volatility/spy?days=10&end=2023-06-30", nil)
	checkStatus(t, w, http.StatusOK)
	var resp struct {
		Symbol  string  `json:"symbol"`
		Current float64 `json:"current_volatility"`
		Days    int     `json:"days"`
		Data    []struct {
			Date       string  `json:"date"`
			Volatility float64 `json:"volatility"`
		} `json:"data"`
	}
	decode(t, w, &resp)
	if resp.Symbol != "SPY" || resp.Days != 10 {
		t.Errorf("unexpected header %+v", resp)
	}
	if len(resp.Data) == 0 {
		t.Fatal("no volatility series")
	}
	last := resp.Data[len(resp.Data)-1]
	if last.Date != "2023-06-30" || last.Volatility != resp.Current {
		t.Errorf("last point %+v, current %v", last, resp.Current)
	}
	for _, point := range resp.Data {
		if point.Volatility <= 0 {
			t.Errorf("non-positive volatility on %s", point.Date)
		}
	}

	w = do(t, s, http.MethodGet, "/api/v1/market-data/volatility/SPY?days=1", nil)
	checkStatus(t, w, http.StatusBadRequest)
}
