package models

import "time"

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// The Result struct contains information about a backtest result.
type Result struct {
	ID             string        `json:"id"`       // Run id, a uuid
	Strategy       string        `json:"strategy"` // Strategy name
	Symbol         string        `json:"symbol"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	InitialCapital float64       `json:"initial_capital"`
	FinalValue     float64       `json:"final_value"`
	Status         RunStatus     `json:"status"`
	Error          string        `json:"error,omitempty"`
	Stats          Stats         `json:"stats"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	Trades         []Trade       `json:"trades"`
	OpenPositions  []Position    `json:"open_positions"` // Positions still held after the last day
	Params         string        `json:"params"`         // Strategy params, for logging
}
