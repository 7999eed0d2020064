package trading

import (
	"github.com/tradelog/tradelog/adapter"
	"github.com/tradelog/tradelog/log"

	"github.com/shopspring/decimal"
)

// Journal turns host callbacks into log events.
type Journal struct {
	logger log.Logger
	clock  *SimulationClock
}

// NewJournal writes through logger. When clock is non-nil, bar callbacks
// advance it.
func NewJournal(logger log.Logger, clock *SimulationClock) *Journal {
	return &Journal{logger: logger, clock: clock}
}

func (j *Journal) OnNewBar(bar Bar) {
	if j.clock != nil {
		j.clock.Set(bar.Time)
	}
	j.logger.Debug("New bar for {Symbol}: close {Close}", bar.Symbol, PriceValue(bar.Close))
}

func (j *Journal) OnOrderSubmitted(position adapter.Position, order adapter.Order) {
	logger := WithOrder(WithPosition(j.logger, position), order)
	logger.Info("Order submitted: {OrderString}", order)
}

// OnOrderFilled logs the fill together with the profit realized by this
// trade alone.
func (j *Journal) OnOrderFilled(position adapter.Position, order adapter.Order, fill adapter.Fill, realizedProfit decimal.Decimal) {
	logger := j.logger.With("RealizedProfit", PriceValue(realizedProfit))
	logger = WithFill(WithOrder(WithPosition(logger, position), order), fill)
	logger.Info("Order filled: {OrderString} {FillString}", order, fill)
}

// OnOrderCancelled covers cancels and rejects. Cancels the strategy asked
// for are expected and not logged.
func (j *Journal) OnOrderCancelled(position adapter.Position, order adapter.Order, information string) {
	if order.CancelPending {
		return
	}
	logger := WithOrder(WithPosition(j.logger, position), order)
	logger.Warn("Unexpected order cancel for {OrderString}: {Information}", order, information)
}

// RealizedProfit returns the profit of trade index given the cumulative
// realized profit of the position after each trade.
func RealizedProfit(cumulative []decimal.Decimal, index int) decimal.Decimal {
	if index < 0 || index >= len(cumulative) {
		return decimal.Zero
	}
	if index == 0 {
		return cumulative[0]
	}
	return cumulative[index].Sub(cumulative[index-1])
}
