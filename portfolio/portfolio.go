// Package portfolio is the position ledger of a backtest run. It books opens
// and closes, keeps cash exact and marks open positions to model.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tantralabs/optionlab/logger"
	"github.com/tantralabs/optionlab/models"
	"github.com/tantralabs/optionlab/options"
)

// Portfolio owns the positions, trades, cash and equity curve of one run.
// It is not safe for concurrent use; each run owns its own Portfolio.
type Portfolio struct {
	theo           *options.TheoEngine
	initialCapital decimal.Decimal
	commission     decimal.Decimal
	cash           decimal.Decimal
	positions      *arena
	trades         []models.Trade
	equityCurve    []models.EquityPoint
}

// NewPortfolio starts a ledger with initialCapital in cash. commission is
// charged flat on every open and every close.
func NewPortfolio(theo *options.TheoEngine, initialCapital float64, commission float64) *Portfolio {
	capital := decimal.NewFromFloat(initialCapital)
	return &Portfolio{
		theo:           theo,
		initialCapital: capital,
		commission:     decimal.NewFromFloat(commission),
		cash:           capital,
		positions:      newArena(),
	}
}

// OpenPosition adds pos to the ledger. Quantity added in the direction of an
// existing position moves its entry price to the weighted average. Offsetting
// quantity shrinks it, and a position that flips side takes the new entry
// price. Cash is debited by quantity * price + commission.
func (p *Portfolio) OpenPosition(pos models.Position) error {
	if err := validatePosition(pos); err != nil {
		return err
	}
	pos = normalize(pos)
	key := pos.Key()

	if existing, ok := p.positions.get(key); ok {
		held := existing.position.Quantity
		total := held + pos.Quantity
		switch {
		case total == 0:
			p.positions.remove(key)
		case sameSign(held, pos.Quantity):
			cost := float64(held)*existing.position.EntryPrice + float64(pos.Quantity)*pos.EntryPrice
			existing.position.EntryPrice = cost / float64(total)
			existing.position.Quantity = total
		case sameSign(held, total):
			existing.position.Quantity = total
		default:
			existing.position.Quantity = total
			existing.position.EntryPrice = pos.EntryPrice
			existing.position.EntryDate = pos.EntryDate
		}
	} else {
		p.positions.insert(pos)
	}

	cost := decimal.NewFromInt(int64(pos.Quantity)).Mul(decimal.NewFromFloat(pos.EntryPrice)).Add(p.commission)
	p.cash = p.cash.Sub(cost)
	logger.Debugf("Opened %v, cash %v\n", pos, p.cash.StringFixed(2))
	return nil
}

// ClosePosition closes quantity of the position at key. quantity carries the
// sign of the held position, so closing 2 of a -3 short is -2. Closing more
// than is held, or in the wrong direction, is rejected with
// models.ErrInvalidArgument and leaves the ledger untouched.
func (p *Portfolio) ClosePosition(key models.PositionKey, quantity int, exitPrice float64, exitDate time.Time) (models.Trade, error) {
	key = normalizeKey(key)
	existing, ok := p.positions.get(key)
	if !ok {
		return models.Trade{}, fmt.Errorf("%w: %v", models.ErrPositionNotFound, key)
	}
	held := existing.position.Quantity
	if quantity == 0 || !sameSign(held, quantity) || abs(quantity) > abs(held) {
		return models.Trade{}, fmt.Errorf("%w: cannot close %d of %v holding %d", models.ErrInvalidArgument, quantity, key, held)
	}
	if exitPrice < 0 || math.IsNaN(exitPrice) {
		return models.Trade{}, fmt.Errorf("%w: exit price must not be negative, got %v", models.ErrInvalidArgument, exitPrice)
	}

	qty := decimal.NewFromInt(int64(quantity))
	exit := decimal.NewFromFloat(exitPrice)
	entry := decimal.NewFromFloat(existing.position.EntryPrice)
	pnl := qty.Mul(exit.Sub(entry)).Sub(p.commission)

	trade := models.Trade{
		Symbol:     key.Symbol,
		Kind:       key.Kind,
		Strike:     key.Strike,
		Expiration: key.Expiration,
		Quantity:   quantity,
		EntryPrice: existing.position.EntryPrice,
		ExitPrice:  exitPrice,
		EntryDate:  existing.position.EntryDate,
		ExitDate:   models.TruncateDay(exitDate),
		PnL:        pnl.InexactFloat64(),
		Commission: p.commission.InexactFloat64(),
	}
	p.trades = append(p.trades, trade)

	existing.position.Quantity -= quantity
	if existing.position.Quantity == 0 {
		p.positions.remove(key)
	}
	p.cash = p.cash.Add(qty.Mul(exit)).Sub(p.commission)
	logger.Debugf("Closed %d of %v at %v, pnl %v\n", quantity, key, exitPrice, trade.PnL)
	return trade, nil
}

// Each calls fn with a copy of every open position, in the order they were
// opened. Positions may be closed from inside fn.
func (p *Portfolio) Each(fn func(id PositionID, pos models.Position) error) error {
	return p.positions.walk(func(s *slot) error {
		return fn(s.id, s.position)
	})
}

// Compact releases the storage of closed positions.
func (p *Portfolio) Compact() {
	p.positions.compact()
}

func (p *Portfolio) Position(key models.PositionKey) (models.Position, bool) {
	s, ok := p.positions.get(normalizeKey(key))
	if !ok {
		return models.Position{}, false
	}
	return s.position, true
}

// Positions returns a copy of the open positions.
func (p *Portfolio) Positions() []models.Position {
	positions := make([]models.Position, 0, p.positions.len())
	p.Each(func(_ PositionID, pos models.Position) error {
		positions = append(positions, pos)
		return nil
	})
	return positions
}

func (p *Portfolio) NumPositions() int {
	return p.positions.len()
}

// Trades returns a copy of the closed trade history.
func (p *Portfolio) Trades() []models.Trade {
	trades := make([]models.Trade, len(p.trades))
	copy(trades, p.trades)
	return trades
}

func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

func (p *Portfolio) CashDecimal() decimal.Decimal {
	return p.cash
}

func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital.InexactFloat64()
}

func (p *Portfolio) Commission() float64 {
	return p.commission.InexactFloat64()
}

func validatePosition(pos models.Position) error {
	if !pos.Kind.Valid() {
		return fmt.Errorf("%w: unknown instrument kind %q", models.ErrInvalidArgument, pos.Kind)
	}
	if pos.Symbol == "" {
		return fmt.Errorf("%w: position needs a symbol", models.ErrInvalidArgument)
	}
	if pos.Quantity == 0 {
		return fmt.Errorf("%w: position quantity must not be zero", models.ErrInvalidArgument)
	}
	if pos.EntryPrice < 0 || math.IsNaN(pos.EntryPrice) || math.IsInf(pos.EntryPrice, 0) {
		return fmt.Errorf("%w: entry price must not be negative, got %v", models.ErrInvalidArgument, pos.EntryPrice)
	}
	if pos.Kind.IsOption() {
		if pos.Strike <= 0 {
			return fmt.Errorf("%w: option strike must be positive, got %v", models.ErrInvalidArgument, pos.Strike)
		}
		if pos.Expiration.IsZero() {
			return fmt.Errorf("%w: option needs an expiration", models.ErrInvalidArgument)
		}
	} else if pos.Strike != 0 || !pos.Expiration.IsZero() {
		return fmt.Errorf("%w: stock has no strike or expiration", models.ErrInvalidArgument)
	}
	return nil
}

// normalize truncates dates to the day so keys compare by calendar date.
func normalize(pos models.Position) models.Position {
	if !pos.Expiration.IsZero() {
		pos.Expiration = models.TruncateDay(pos.Expiration)
	}
	if !pos.EntryDate.IsZero() {
		pos.EntryDate = models.TruncateDay(pos.EntryDate)
	}
	return pos
}

func normalizeKey(key models.PositionKey) models.PositionKey {
	if !key.Expiration.IsZero() {
		key.Expiration = models.TruncateDay(key.Expiration)
	}
	return key
}

func sameSign(a, b int) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
