package models

// Stats are the performance metrics of a run, derived from the equity curve and trades.
type Stats struct {
	TotalReturn          float64 `json:"total_return"`
	AnnualReturn         float64 `json:"annual_return"`
	Volatility           float64 `json:"volatility"`   // Annualized stdev of daily returns
	SharpeRatio          float64 `json:"sharpe_ratio"` // Against a 2% risk free rate
	MaxDrawdown          float64 `json:"max_drawdown"` // Most negative (value - peak) / peak
	WinRate              float64 `json:"win_rate"`
	TotalTrades          int     `json:"total_trades"`
	ProfitableTrades     int     `json:"profitable_trades"`
	AvgTradePnL          float64 `json:"avg_trade_pnl"`
	BestTrade            float64 `json:"best_trade"`
	WorstTrade           float64 `json:"worst_trade"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}
