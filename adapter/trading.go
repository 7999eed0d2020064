package adapter

import (
	"time"

	F "github.com/sagernet/sing/common/format"

	"github.com/shopspring/decimal"
)

// Clock reports the host's notion of the current time. During a backtest this
// is the simulated bar time, not the wall clock.
type Clock interface {
	CurrentTime() time.Time
}

type OrderType uint8

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "Market"
	case OrderTypeLimit:
		return "Limit"
	case OrderTypeStop:
		return "Stop"
	case OrderTypeStopLimit:
		return "StopLimit"
	default:
		return F.ToString("OrderType(", uint8(t), ")")
	}
}

type TransactionType uint8

const (
	TransactionTypeBuy TransactionType = iota
	TransactionTypeSell
	TransactionTypeShort
	TransactionTypeCover
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeBuy:
		return "Buy"
	case TransactionTypeSell:
		return "Sell"
	case TransactionTypeShort:
		return "Short"
	case TransactionTypeCover:
		return "Cover"
	default:
		return F.ToString("TransactionType(", uint8(t), ")")
	}
}

type OrderState uint8

const (
	OrderStateNew OrderState = iota
	OrderStateSubmitted
	OrderStatePartiallyFilled
	OrderStateFilled
	OrderStateCancelled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "New"
	case OrderStateSubmitted:
		return "Submitted"
	case OrderStatePartiallyFilled:
		return "PartiallyFilled"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCancelled:
		return "Cancelled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return F.ToString("OrderState(", uint8(s), ")")
	}
}

type PositionType uint8

const (
	PositionTypeLong PositionType = iota
	PositionTypeShort
)

func (t PositionType) String() string {
	switch t {
	case PositionTypeLong:
		return "Long"
	case PositionTypeShort:
		return "Short"
	default:
		return F.ToString("PositionType(", uint8(t), ")")
	}
}

// Symbol identifies a traded instrument. It is always logged as a scalar.
type Symbol struct {
	Name     string
	Exchange string
}

func (s Symbol) String() string {
	if s.Exchange == "" {
		return s.Name
	}
	return s.Name + "." + s.Exchange
}

// Order is a read-only snapshot of a host order.
type Order struct {
	ID              string
	PositionID      string
	Symbol          Symbol
	OrderType       OrderType
	TransactionType TransactionType
	Size            int64
	LimitPrice      decimal.Decimal
	StopPrice       decimal.Decimal
	State           OrderState
	Description     string
	CancelPending   bool
}

func (o Order) String() string {
	message := F.ToString(o.TransactionType, " ", o.Size, " ", o.Symbol, " ", o.OrderType)
	switch o.OrderType {
	case OrderTypeLimit:
		message += " @ " + o.LimitPrice.String()
	case OrderTypeStop:
		message += " @ " + o.StopPrice.String()
	case OrderTypeStopLimit:
		message += " @ " + o.StopPrice.String() + "/" + o.LimitPrice.String()
	}
	if o.Description != "" {
		message += " (" + o.Description + ")"
	}
	return message
}

// Position is a read-only snapshot of a host position.
type Position struct {
	ID          string
	Type        PositionType
	Symbol      Symbol
	CurrentSize int64
}

func (p Position) String() string {
	return F.ToString(p.Type, " ", p.CurrentSize, " ", p.Symbol, " #", p.ID)
}

// Fill is a single execution against an order.
type Fill struct {
	Time     time.Time
	Price    decimal.Decimal
	Quantity int64
}

func (f Fill) String() string {
	return F.ToString(f.Quantity, " @ ", f.Price.String(), " ", f.Time.Format("2006-01-02 15:04:05"))
}
