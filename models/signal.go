package models

import "time"

// Signal is an intent emitted by a strategy for a given day. The set of
// signals is closed; strategies dispatch on the concrete type.
type Signal interface {
	SignalDate() time.Time
	SignalSymbol() string
	isSignal()
}

// BuyStock buys Quantity shares. Price is the close seen when the signal was
// generated and is used only if the day's snapshot has no price.
type BuyStock struct {
	Date     time.Time
	Symbol   string
	Quantity int
	Price    float64
}

// SellCall writes one covered call.
type SellCall struct {
	Date           time.Time
	Symbol         string
	ExpirationDays int
}

// OpenIronCondor sells a put spread and a call spread.
type OpenIronCondor struct {
	Date           time.Time
	Symbol         string
	ExpirationDays int
}

// OpenShortStraddle sells an at the money call and put.
type OpenShortStraddle struct {
	Date           time.Time
	Symbol         string
	ExpirationDays int
}

// CheckRebalance asks the strategy to compare portfolio delta against its target.
type CheckRebalance struct {
	Date   time.Time
	Symbol string
}

// EnterDirectional buys an at the money option of Kind after a trend change.
type EnterDirectional struct {
	Date           time.Time
	Symbol         string
	Kind           InstrumentKind
	ExpirationDays int
}

func (s BuyStock) SignalDate() time.Time          { return s.Date }
func (s SellCall) SignalDate() time.Time          { return s.Date }
func (s OpenIronCondor) SignalDate() time.Time    { return s.Date }
func (s OpenShortStraddle) SignalDate() time.Time { return s.Date }
func (s CheckRebalance) SignalDate() time.Time    { return s.Date }
func (s EnterDirectional) SignalDate() time.Time  { return s.Date }

func (s BuyStock) SignalSymbol() string          { return s.Symbol }
func (s SellCall) SignalSymbol() string          { return s.Symbol }
func (s OpenIronCondor) SignalSymbol() string    { return s.Symbol }
func (s OpenShortStraddle) SignalSymbol() string { return s.Symbol }
func (s CheckRebalance) SignalSymbol() string    { return s.Symbol }
func (s EnterDirectional) SignalSymbol() string  { return s.Symbol }

func (BuyStock) isSignal()          {}
func (SellCall) isSignal()          {}
func (OpenIronCondor) isSignal()    {}
func (OpenShortStraddle) isSignal() {}
func (CheckRebalance) isSignal()    {}
func (EnterDirectional) isSignal()  {}

// SignalsOn returns the signals dated on the same day as date, in order.
func SignalsOn(signals []Signal, date time.Time) []Signal {
	day := TruncateDay(date)
	var todays []Signal
	for _, signal := range signals {
		if TruncateDay(signal.SignalDate()).Equal(day) {
			todays = append(todays, signal)
		}
	}
	return todays
}
