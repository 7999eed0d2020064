package log

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueText(t *testing.T) {
	value := Structure("Order",
		F("OrderID", StringValue("o-1")),
		F("Size", Int64Value(100)),
		F("Tags", Sequence(StringValue("a"), BoolValue(true))),
	)
	assert.Equal(t, `Order { OrderID: "o-1", Size: 100, Tags: ["a", true] }`, value.String())
	assert.Equal(t, "{}", Structure("").String())
	assert.Equal(t, "null", NullValue().String())
	assert.Equal(t, "plain", StringValue("plain").String())
}

func TestValueJSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 5, time.UTC)
	value := Structure("Fill",
		F("FilledTime", TimeValue(at)),
		F("Price", Float64Value(101.25)),
		F("Note", StringValue("say \"hi\"")),
		F("Bad", Float64Value(math.NaN())),
		F("Empty", NullValue()),
	)
	data, err := value.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"$type":"Fill","FilledTime":"2024-03-01T09:30:00.000000005Z","Price":101.25,"Note":"say \"hi\"","Bad":"NaN","Empty":null}`, string(data))
}

func TestValueEqual(t *testing.T) {
	at := time.Now()
	left := Structure("T", F("A", Int64Value(1)), F("B", TimeValue(at)))
	right := Structure("T", F("A", Int64Value(1)), F("B", TimeValue(at.In(time.FixedZone("X", 3600)))))
	assert.True(t, left.Equal(right))
	assert.False(t, left.Equal(Structure("T", F("A", Int64Value(2)), F("B", TimeValue(at)))))
	assert.False(t, Int64Value(1).Equal(Uint64Value(1)))
}

func TestValueCopies(t *testing.T) {
	fields := []Field{F("A", Int64Value(1))}
	value := Structure("", fields...)
	fields[0] = F("B", Int64Value(2))
	_, ok := value.Field("A")
	assert.True(t, ok)

	returned := value.Fields()
	returned[0] = F("C", NullValue())
	_, ok = value.Field("A")
	assert.True(t, ok)
}

func TestValueAny(t *testing.T) {
	value := Structure("", F("A", Sequence(Int64Value(1), StringValue("x"))))
	assert.Equal(t, map[string]any{"A": []any{int64(1), "x"}}, value.Any())
}
