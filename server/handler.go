package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tantralabs/optionlab"
	"github.com/tantralabs/optionlab/data"
	"github.com/tantralabs/optionlab/database"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
	"github.com/tantralabs/optionlab/settings"
	"github.com/tantralabs/optionlab/strategies"
	"github.com/tantralabs/optionlab/utils"
)

const (
	DefaultListLimit   = 50
	DefaultTradesLimit = 100
	DefaultVolDays     = 30
)

// Handler serves the API. Backtests run in the background against a copy of
// the base config, and their results are kept in the store.
type Handler struct {
	theo     *options.TheoEngine
	provider data.Provider
	config   settings.Config
	store    database.ResultStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHandler(theo *options.TheoEngine, provider data.Provider, config settings.Config, store database.ResultStore) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		theo:     theo,
		provider: provider,
		config:   config,
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Wait blocks until every started backtest has stored its result.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Close cancels running backtests and waits for them to record their failure.
func (h *Handler) Close() {
	h.cancel()
	h.wg.Wait()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrMissingMarketData),
		errors.Is(err, options.ErrNoSolution):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v\n", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type pricingRequest struct {
	StockPrice   float64  `json:"stock_price" binding:"gt=0"`
	StrikePrice  float64  `json:"strike_price" binding:"gt=0"`
	TimeToExpiry float64  `json:"time_to_expiry" binding:"gt=0"`
	RiskFreeRate *float64 `json:"risk_free_rate"`
	Volatility   float64  `json:"volatility" binding:"gt=0,lte=5"`
	OptionType   string   `json:"option_type" binding:"required"`
}

type impliedVolRequest struct {
	MarketPrice  float64  `json:"market_price" binding:"gt=0"`
	StockPrice   float64  `json:"stock_price" binding:"gt=0"`
	StrikePrice  float64  `json:"strike_price" binding:"gt=0"`
	TimeToExpiry float64  `json:"time_to_expiry" binding:"gt=0"`
	RiskFreeRate *float64 `json:"risk_free_rate"`
	OptionType   string   `json:"option_type" binding:"required"`
}

func (h *Handler) rate(r *float64) float64 {
	if r == nil {
		return h.config.RiskFreeRate
	}
	return *r
}

// bindOption decodes the body and parses the option type. Callers return on
// false, the response has been written.
func bindOption(c *gin.Context, req interface{}, optionType func() string) (models.InstrumentKind, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	kind, err := models.ParseInstrumentKind(optionType())
	if err == nil && !kind.IsOption() {
		err = fmt.Errorf("%w: option_type must be call or put", models.ErrInvalidArgument)
	}
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return kind, true
}

func (h *Handler) Price(c *gin.Context) {
	var req pricingRequest
	kind, ok := bindOption(c, &req, func() string { return req.OptionType })
	if !ok {
		return
	}
	r := h.rate(req.RiskFreeRate)
	price, err := h.theo.Price(kind, req.StockPrice, req.StrikePrice, req.TimeToExpiry, r, req.Volatility)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"option_price":   price,
		"stock_price":    req.StockPrice,
		"strike_price":   req.StrikePrice,
		"time_to_expiry": req.TimeToExpiry,
		"risk_free_rate": r,
		"volatility":     req.Volatility,
		"option_type":    kind,
	})
}

func (h *Handler) Greeks(c *gin.Context) {
	var req pricingRequest
	kind, ok := bindOption(c, &req, func() string { return req.OptionType })
	if !ok {
		return
	}
	r := h.rate(req.RiskFreeRate)
	greeks, err := h.theo.Greeks(kind, req.StockPrice, req.StrikePrice, req.TimeToExpiry, r, req.Volatility)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{
		"stock_price":    req.StockPrice,
		"strike_price":   req.StrikePrice,
		"time_to_expiry": req.TimeToExpiry,
		"risk_free_rate": r,
		"volatility":     req.Volatility,
		"option_type":    kind,
	}
	for name, value := range greeks.Map() {
		resp[name] = value
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ImpliedVolatility(c *gin.Context) {
	var req impliedVolRequest
	kind, ok := bindOption(c, &req, func() string { return req.OptionType })
	if !ok {
		return
	}
	r := h.rate(req.RiskFreeRate)
	iv, err := h.theo.ImpliedVol(kind, req.MarketPrice, req.StockPrice, req.StrikePrice, req.TimeToExpiry, r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"implied_volatility": iv,
		"market_price":       req.MarketPrice,
		"stock_price":        req.StockPrice,
		"strike_price":       req.StrikePrice,
		"time_to_expiry":     req.TimeToExpiry,
		"risk_free_rate":     r,
		"option_type":        kind,
	})
}

func (h *Handler) ListStrategies(c *gin.Context) {
	infos := strategies.List()
	c.JSON(http.StatusOK, gin.H{
		"count":      len(infos),
		"strategies": infos,
	})
}

func (h *Handler) GetStrategy(c *gin.Context) {
	info, ok := strategies.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found", "id": c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, info)
}

type backtestRequest struct {
	StrategyType   string          `json:"strategy_type" binding:"required"`
	Symbol         string          `json:"symbol" binding:"required"`
	StartDate      string          `json:"start_date" binding:"required"`
	EndDate        string          `json:"end_date" binding:"required"`
	InitialCapital float64         `json:"initial_capital"`
	Commission     *float64        `json:"commission"`
	Parameters     json.RawMessage `json:"parameters"`
}

// backtestConfig layers the request over the base config. Parameters not named in
// the request keep their configured values.
func (h *Handler) backtestConfig(req backtestRequest) (settings.Config, error) {
	config := h.config
	config.Strategy = req.StrategyType
	config.Symbol = strings.ToUpper(req.Symbol)
	config.StartDate = req.StartDate
	config.EndDate = req.EndDate
	if req.InitialCapital != 0 {
		config.InitialCapital = req.InitialCapital
	}
	if req.Commission != nil {
		config.Commission = *req.Commission
	}
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &config.Params); err != nil {
			return config, fmt.Errorf("%w: parameters: %v", models.ErrInvalidArgument, err)
		}
	}
	return config, config.Validate()
}

// RunBacktest validates the request, stores a pending result and runs the
// backtest in the background.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	config, err := h.backtestConfig(req)
	if err != nil {
		writeError(c, err)
		return
	}
	strategy, err := strategies.New(config.Strategy, h.theo, config)
	if err != nil {
		writeError(c, err)
		return
	}
	start, _ := config.Start()
	end, _ := config.End()

	pending := &models.Result{
		ID:             uuid.New().String(),
		Strategy:       strategy.Name(),
		Symbol:         strategy.Symbol(),
		Start:          start,
		End:            end,
		InitialCapital: config.InitialCapital,
		FinalValue:     config.InitialCapital,
		Status:         models.StatusPending,
	}
	if err := h.store.SaveResult(c.Request.Context(), pending); err != nil {
		writeError(c, err)
		return
	}

	h.wg.Add(1)
	go h.run(pending, strategy, config)

	logger.Infof("Queued backtest %s: %s on %s\n", pending.ID, config.Strategy, config.Symbol)
	c.JSON(http.StatusAccepted, gin.H{
		"backtest_id": pending.ID,
		"status":      pending.Status,
		"message":     "backtest started",
	})
}

func (h *Handler) run(pending *models.Result, strategy optionlab.Strategy, config settings.Config) {
	defer h.wg.Done()

	running := *pending
	running.Status = models.StatusRunning
	var result *models.Result
	err := h.store.SaveResult(h.ctx, &running)
	if err == nil {
		result, err = optionlab.NewBacktest(h.theo, h.provider, config).Run(h.ctx, strategy)
	}
	if err != nil {
		logger.Errorf("Backtest %s failed: %v\n", pending.ID, err)
		result = &running
		result.Status = models.StatusFailed
		result.Error = err.Error()
	} else {
		result.ID = pending.ID
		optionlab.LogStats(result)
	}

	// The run context may be cancelled already, the final status is still recorded.
	if err := h.store.SaveResult(context.Background(), result); err != nil {
		logger.Errorf("Backtest %s: %v\n", pending.ID, err)
	}
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", models.ErrInvalidArgument, name, raw)
	}
	return v, nil
}

func pageParams(c *gin.Context, defaultLimit int) (int, int, error) {
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(c, "offset", 0)
	return limit, offset, err
}

func summary(r *models.Result) gin.H {
	return gin.H{
		"backtest_id":     r.ID,
		"strategy":        r.Strategy,
		"symbol":          r.Symbol,
		"start_date":      r.Start.Format(models.DateLayout),
		"end_date":        r.End.Format(models.DateLayout),
		"initial_capital": r.InitialCapital,
		"final_value":     r.FinalValue,
		"status":          r.Status,
		"error":           r.Error,
	}
}

func (h *Handler) ListBacktests(c *gin.Context) {
	limit, offset, err := pageParams(c, DefaultListLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	results, err := h.store.ListResults(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	list := make([]gin.H, 0, len(results))
	for _, r := range results {
		list = append(list, summary(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(list),
		"backtests": list,
	})
}

func (h *Handler) result(c *gin.Context) (*models.Result, bool) {
	result, err := h.store.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return result, true
}

func (h *Handler) GetBacktest(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetBacktestStatus(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, summary(result))
}

func (h *Handler) GetEquityCurve(c *gin.Context) {
	result, ok := h.result(c)
	if !ok {
		return
	}
	curve := make([]gin.H, 0, len(result.EquityCurve))
	for _, point := range result.EquityCurve {
		curve = append(curve, gin.H{
			"date":            point.Date.Format(models.DateLayout),
			"portfolio_value": point.Value,
			"cash":            point.Cash,
			"positions_value": point.PositionsValue,
		})
	}
	c.JSON(http.StatusOK, curve)
}

func (h *Handler) GetTrades(c *gin.Context) {
	limit, offset, err := pageParams(c, DefaultTradesLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	result, ok := h.result(c)
	if !ok {
		return
	}
	trades := result.Trades
	if offset > len(trades) {
		offset = len(trades)
	}
	trades = trades[offset:]
	if limit < len(trades) {
		trades = trades[:limit]
	}
	records := make([]models.TradeRecord, 0, len(trades))
	for _, trade := range trades {
		records = append(records, trade.Record())
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(result.Trades),
		"trades": records,
	})
}

func (h *Handler) DeleteBacktest(c *gin.Context) {
	if err := h.store.DeleteResult(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "backtest deleted"})
}

// GetVolatility returns the rolling annualized volatility of a symbol over
// the last 30 observations before end (default: the configured end date).
func (h *Handler) GetVolatility(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	days, err := queryInt(c, "days", DefaultVolDays)
	if err == nil && days < 2 {
		err = fmt.Errorf("%w: days must be at least 2", models.ErrInvalidArgument)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := h.config.End()
	if raw := c.Query("end"); raw != "" {
		end, err = utils.ParseDate(raw)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	histories, err := data.LoadHistories(c.Request.Context(), h.provider, []string{symbol}, end.AddDate(0, 0, -4*days), end)
	if err != nil {
		writeError(c, err)
		return
	}
	history := histories[0]
	if history.Len() <= days {
		writeError(c, fmt.Errorf("%w: %d bars are not enough for a %d day window", models.ErrMissingMarketData, history.Len(), days))
		return
	}

	params := data.VolatilityParams{
		Window:  days + 1,
		Default: h.config.DefaultVolatility,
		Min:     0,
	}
	bars := history.Bars()
	from := days
	if len(bars)-DefaultVolDays > from {
		from = len(bars) - DefaultVolDays
	}
	series := make([]gin.H, 0, len(bars)-from)
	current := params.Default
	for i := from; i < len(bars); i++ {
		current = utils.ToFixed(history.Volatility(i, params), 4)
		series = append(series, gin.H{
			"date":       bars[i].Day().Format(models.DateLayout),
			"volatility": current,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":             symbol,
		"current_volatility": current,
		"days":               days,
		"data":               series,
		"as_of":              end.Format(models.DateLayout),
		"computed_at":        time.Now().UTC().Format(time.RFC3339),
	})
}
