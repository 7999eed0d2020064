package trading

import (
	"github.com/tradelog/tradelog/adapter"
	"github.com/tradelog/tradelog/log"

	"github.com/shopspring/decimal"
)

// Register installs the trading destructurers: orders, positions and fills
// are projected onto fixed field sets, symbols and decimals log as scalars.
func Register(registry *log.Registry) {
	log.RegisterScalar[adapter.Symbol](registry)
	log.RegisterScalar[decimal.Decimal](registry)
	log.Register(registry, OrderValue)
	log.Register(registry, PositionValue)
	log.Register(registry, FillValue)
}

func OrderValue(order adapter.Order) log.Value {
	return log.Structure("Order",
		log.F("OrderID", log.StringValue(order.ID)),
		log.F("PositionID", log.StringValue(order.PositionID)),
		log.F("Symbol", log.StringValue(order.Symbol.String())),
		log.F("OrderType", log.StringValue(order.OrderType.String())),
		log.F("TransactionType", log.StringValue(order.TransactionType.String())),
		log.F("Size", log.Int64Value(order.Size)),
		log.F("LimitPrice", PriceValue(order.LimitPrice)),
		log.F("StopPrice", PriceValue(order.StopPrice)),
		log.F("OrderState", log.StringValue(order.State.String())),
		log.F("Description", log.StringValue(order.Description)),
	)
}

func PositionValue(position adapter.Position) log.Value {
	return log.Structure("Position",
		log.F("ID", log.StringValue(position.ID)),
		log.F("PositionType", log.StringValue(position.Type.String())),
		log.F("Symbol", log.StringValue(position.Symbol.String())),
		log.F("CurrentSize", log.Int64Value(position.CurrentSize)),
	)
}

func FillValue(fill adapter.Fill) log.Value {
	return log.Structure("Fill",
		log.F("FilledTime", log.TimeValue(fill.Time)),
		log.F("Price", PriceValue(fill.Price)),
		log.F("Size", log.Int64Value(fill.Quantity)),
	)
}

// PriceValue logs a price as a number so that log queries can aggregate it.
func PriceValue(price decimal.Decimal) log.Value {
	return log.Float64Value(price.InexactFloat64())
}

// WithPosition binds the destructured position and its ID.
func WithPosition(logger log.Logger, position adapter.Position) log.Logger {
	return logger.WithValue("Position", position, true).With("PositionID", position.ID)
}

// WithOrder binds the destructured order and its ID.
func WithOrder(logger log.Logger, order adapter.Order) log.Logger {
	return logger.WithValue("Order", order, true).With("OrderID", order.ID)
}

func WithFill(logger log.Logger, fill adapter.Fill) log.Logger {
	return logger.WithValue("Fill", fill, true)
}
