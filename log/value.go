package log

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindScalar Kind = iota
	KindStructure
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindStructure:
		return "structure"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is a destructured log value. The zero Value is the null scalar.
// Values never share mutable state with the object they were captured from.
type Value struct {
	kind     Kind
	scalar   any
	typeTag  string
	fields   []Field
	elements []Value
}

// Field is a named member of a structure value.
type Field struct {
	Name  string
	Value Value
}

func F(name string, value Value) Field {
	return Field{Name: name, Value: value}
}

func NullValue() Value {
	return Value{}
}

func StringValue(value string) Value {
	return Value{scalar: value}
}

func BoolValue(value bool) Value {
	return Value{scalar: value}
}

func Int64Value(value int64) Value {
	return Value{scalar: value}
}

func Uint64Value(value uint64) Value {
	return Value{scalar: value}
}

func Float64Value(value float64) Value {
	return Value{scalar: value}
}

// TimeValue strips the monotonic clock reading so that equal instants
// compare and render identically.
func TimeValue(value time.Time) Value {
	return Value{scalar: value.Round(0)}
}

// Structure builds a structure value. The fields slice is copied.
func Structure(typeTag string, fields ...Field) Value {
	return Value{
		kind:    KindStructure,
		typeTag: typeTag,
		fields:  append([]Field(nil), fields...),
	}
}

// Sequence builds a sequence value. The elements slice is copied.
func Sequence(elements ...Value) Value {
	return Value{
		kind:     KindSequence,
		elements: append([]Value(nil), elements...),
	}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindScalar && v.scalar == nil
}

// Scalar returns the scalar payload: nil, string, bool, int64, uint64,
// float64 or time.Time.
func (v Value) Scalar() any {
	return v.scalar
}

func (v Value) TypeTag() string {
	return v.typeTag
}

func (v Value) Fields() []Field {
	return append([]Field(nil), v.fields...)
}

func (v Value) Field(name string) (Value, bool) {
	for _, field := range v.fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

func (v Value) Elements() []Value {
	return append([]Value(nil), v.elements...)
}

// Len returns the number of fields or elements; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindStructure:
		return len(v.fields)
	case KindSequence:
		return len(v.elements)
	default:
		return 0
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		if t, ok := v.scalar.(time.Time); ok {
			o, ok := other.scalar.(time.Time)
			return ok && t.Equal(o)
		}
		return v.scalar == other.scalar
	case KindStructure:
		if v.typeTag != other.typeTag || len(v.fields) != len(other.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Name != other.fields[i].Name || !v.fields[i].Value.Equal(other.fields[i].Value) {
				return false
			}
		}
		return true
	case KindSequence:
		if len(v.elements) != len(other.elements) {
			return false
		}
		for i := range v.elements {
			if !v.elements[i].Equal(other.elements[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Any converts the value into plain Go data. Structures become
// map[string]any and lose field order.
func (v Value) Any() any {
	switch v.kind {
	case KindStructure:
		m := make(map[string]any, len(v.fields))
		for _, field := range v.fields {
			m[field.Name] = field.Value.Any()
		}
		return m
	case KindSequence:
		s := make([]any, len(v.elements))
		for i, element := range v.elements {
			s[i] = element.Any()
		}
		return s
	default:
		return v.scalar
	}
}

func (v Value) String() string {
	var builder strings.Builder
	v.appendText(&builder, false, "")
	return builder.String()
}

func (v Value) appendText(builder *strings.Builder, quote bool, format string) {
	switch v.kind {
	case KindStructure:
		if v.typeTag != "" {
			builder.WriteString(v.typeTag)
			builder.WriteByte(' ')
		}
		if len(v.fields) == 0 {
			builder.WriteString("{}")
			return
		}
		builder.WriteString("{ ")
		for i, field := range v.fields {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(field.Name)
			builder.WriteString(": ")
			field.Value.appendText(builder, true, "")
		}
		builder.WriteString(" }")
	case KindSequence:
		builder.WriteByte('[')
		for i, element := range v.elements {
			if i > 0 {
				builder.WriteString(", ")
			}
			element.appendText(builder, true, "")
		}
		builder.WriteByte(']')
	default:
		builder.WriteString(formatScalar(v.scalar, quote, format))
	}
}

func formatScalar(scalar any, quote bool, format string) string {
	switch s := scalar.(type) {
	case nil:
		return "null"
	case string:
		if quote {
			return strconv.Quote(s)
		}
		return s
	case bool:
		return strconv.FormatBool(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	case time.Time:
		if format == "" {
			format = time.RFC3339Nano
		}
		return s.Format(format)
	default:
		return "?"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	v.appendJSON(&buffer)
	return buffer.Bytes(), nil
}

func (v Value) appendJSON(buffer *bytes.Buffer) {
	switch v.kind {
	case KindStructure:
		buffer.WriteByte('{')
		first := true
		if v.typeTag != "" {
			appendJSONString(buffer, "$type")
			buffer.WriteByte(':')
			appendJSONString(buffer, v.typeTag)
			first = false
		}
		for _, field := range v.fields {
			if !first {
				buffer.WriteByte(',')
			}
			first = false
			appendJSONString(buffer, field.Name)
			buffer.WriteByte(':')
			field.Value.appendJSON(buffer)
		}
		buffer.WriteByte('}')
	case KindSequence:
		buffer.WriteByte('[')
		for i, element := range v.elements {
			if i > 0 {
				buffer.WriteByte(',')
			}
			element.appendJSON(buffer)
		}
		buffer.WriteByte(']')
	default:
		appendJSONScalar(buffer, v.scalar)
	}
}

func appendJSONScalar(buffer *bytes.Buffer, scalar any) {
	switch s := scalar.(type) {
	case nil:
		buffer.WriteString("null")
	case string:
		appendJSONString(buffer, s)
	case bool:
		buffer.WriteString(strconv.FormatBool(s))
	case int64:
		buffer.WriteString(strconv.FormatInt(s, 10))
	case uint64:
		buffer.WriteString(strconv.FormatUint(s, 10))
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			appendJSONString(buffer, strconv.FormatFloat(s, 'g', -1, 64))
		} else {
			buffer.WriteString(strconv.FormatFloat(s, 'g', -1, 64))
		}
	case time.Time:
		appendJSONString(buffer, s.Format(time.RFC3339Nano))
	default:
		buffer.WriteString("null")
	}
}

func appendJSONString(buffer *bytes.Buffer, s string) {
	data, err := json.Marshal(s)
	if err != nil {
		buffer.WriteString(`""`)
		return
	}
	buffer.Write(data)
}
