package models

import "errors"

var (
	// ErrInvalidArgument is returned for inputs that can never be priced or booked.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingMarketData is returned when a symbol has no data for a required date.
	ErrMissingMarketData = errors.New("missing market data")
	// ErrPositionNotFound is returned when closing a key that has no open position.
	ErrPositionNotFound = errors.New("position not found")
)
