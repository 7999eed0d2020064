package trading

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/tradelog/tradelog/adapter"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/json"

	"github.com/shopspring/decimal"
)

const (
	RecordTypeBar            = "bar"
	RecordTypeOrderSubmitted = "order_submitted"
	RecordTypeOrderFilled    = "order_filled"
	RecordTypeOrderCancelled = "order_cancelled"
)

type Bar struct {
	Time   time.Time
	Symbol adapter.Symbol
	Close  decimal.Decimal
}

// Record is one host callback in a replay file, one JSON object per line.
type Record struct {
	Type           string          `json:"type"`
	Time           time.Time       `json:"time"`
	Symbol         string          `json:"symbol,omitempty"`
	Close          decimal.Decimal `json:"close"`
	Position       *PositionRecord `json:"position,omitempty"`
	Order          *OrderRecord    `json:"order,omitempty"`
	Fill           *FillRecord     `json:"fill,omitempty"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	Information    string          `json:"information,omitempty"`
}

type PositionRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Symbol      string `json:"symbol"`
	CurrentSize int64  `json:"current_size"`
}

type OrderRecord struct {
	ID              string          `json:"id"`
	PositionID      string          `json:"position_id,omitempty"`
	Symbol          string          `json:"symbol"`
	OrderType       string          `json:"order_type"`
	TransactionType string          `json:"transaction_type"`
	Size            int64           `json:"size"`
	LimitPrice      decimal.Decimal `json:"limit_price"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	State           string          `json:"state,omitempty"`
	Description     string          `json:"description,omitempty"`
	CancelPending   bool            `json:"cancel_pending,omitempty"`
}

type FillRecord struct {
	Time     time.Time       `json:"time"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// Replay reads records from reader and drives journal until EOF, the first
// malformed record, or ctx is done. It returns the number of records
// replayed.
func Replay(ctx context.Context, reader io.Reader, journal *Journal) (int, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var count, line int
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return count, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var record Record
		err := json.Unmarshal([]byte(text), &record)
		if err != nil {
			return count, E.Cause(err, "decode record at line ", line)
		}
		err = ReplayRecord(journal, record)
		if err != nil {
			return count, E.Cause(err, "replay record at line ", line)
		}
		count++
	}
	return count, scanner.Err()
}

func ReplayRecord(journal *Journal, record Record) error {
	switch record.Type {
	case RecordTypeBar:
		if record.Symbol == "" {
			return E.New("bar requires symbol")
		}
		journal.OnNewBar(Bar{Time: record.Time, Symbol: ParseSymbol(record.Symbol), Close: record.Close})
		return nil
	case RecordTypeOrderSubmitted, RecordTypeOrderFilled, RecordTypeOrderCancelled:
	case "":
		return E.New("missing record type")
	default:
		return E.New("unknown record type: ", record.Type)
	}
	if record.Position == nil || record.Order == nil {
		return E.New(record.Type, " requires position and order")
	}
	position, err := record.Position.build()
	if err != nil {
		return err
	}
	order, err := record.Order.build(position.ID)
	if err != nil {
		return err
	}
	if journal.clock != nil && !record.Time.IsZero() {
		journal.clock.Set(record.Time)
	}
	switch record.Type {
	case RecordTypeOrderSubmitted:
		journal.OnOrderSubmitted(position, order)
	case RecordTypeOrderFilled:
		if record.Fill == nil {
			return E.New("order_filled requires fill")
		}
		fill := adapter.Fill{Time: record.Fill.Time, Price: record.Fill.Price, Quantity: record.Fill.Quantity}
		journal.OnOrderFilled(position, order, fill, record.RealizedProfit)
	case RecordTypeOrderCancelled:
		journal.OnOrderCancelled(position, order, record.Information)
	}
	return nil
}

func (r *PositionRecord) build() (adapter.Position, error) {
	positionType, err := ParsePositionType(r.Type)
	if err != nil {
		return adapter.Position{}, err
	}
	return adapter.Position{
		ID:          r.ID,
		Type:        positionType,
		Symbol:      ParseSymbol(r.Symbol),
		CurrentSize: r.CurrentSize,
	}, nil
}

func (r *OrderRecord) build(positionID string) (adapter.Order, error) {
	orderType, err := ParseOrderType(r.OrderType)
	if err != nil {
		return adapter.Order{}, err
	}
	transactionType, err := ParseTransactionType(r.TransactionType)
	if err != nil {
		return adapter.Order{}, err
	}
	state, err := ParseOrderState(r.State)
	if err != nil {
		return adapter.Order{}, err
	}
	if r.PositionID != "" {
		positionID = r.PositionID
	}
	return adapter.Order{
		ID:              r.ID,
		PositionID:      positionID,
		Symbol:          ParseSymbol(r.Symbol),
		OrderType:       orderType,
		TransactionType: transactionType,
		Size:            r.Size,
		LimitPrice:      r.LimitPrice,
		StopPrice:       r.StopPrice,
		State:           state,
		Description:     r.Description,
		CancelPending:   r.CancelPending,
	}, nil
}

// ParseSymbol accepts "NAME" or "NAME.EXCHANGE".
func ParseSymbol(text string) adapter.Symbol {
	name, exchange, _ := strings.Cut(text, ".")
	return adapter.Symbol{Name: name, Exchange: exchange}
}

func ParseOrderType(text string) (adapter.OrderType, error) {
	return parseEnum(text, "order type", adapter.OrderTypeMarket, adapter.OrderTypeLimit, adapter.OrderTypeStop, adapter.OrderTypeStopLimit)
}

func ParseTransactionType(text string) (adapter.TransactionType, error) {
	return parseEnum(text, "transaction type", adapter.TransactionTypeBuy, adapter.TransactionTypeSell, adapter.TransactionTypeShort, adapter.TransactionTypeCover)
}

func ParseOrderState(text string) (adapter.OrderState, error) {
	return parseEnum(text, "order state", adapter.OrderStateNew, adapter.OrderStateSubmitted, adapter.OrderStatePartiallyFilled,
		adapter.OrderStateFilled, adapter.OrderStateCancelled, adapter.OrderStateRejected)
}

func ParsePositionType(text string) (adapter.PositionType, error) {
	return parseEnum(text, "position type", adapter.PositionTypeLong, adapter.PositionTypeShort)
}

// parseEnum matches text case-insensitively against the names of values.
// Empty text selects the first value.
func parseEnum[T interface{ String() string }](text string, kind string, values ...T) (T, error) {
	if text == "" {
		return values[0], nil
	}
	for _, value := range values {
		if strings.EqualFold(value.String(), text) {
			return value, nil
		}
	}
	var zero T
	return zero, E.New("unknown ", kind, ": ", text)
}
