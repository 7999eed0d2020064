package log

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	C "github.com/tradelog/tradelog/constant"

	E "github.com/sagernet/sing/common/exceptions"
)

// CaptureMode selects how an argument is turned into a Value. It matches the
// template hole hints: {Name}, {@Name} and {$Name}.
type CaptureMode uint8

const (
	CaptureDefault CaptureMode = iota
	CaptureDestructure
	CaptureStringify
)

// ValueMarshaler is implemented by types that destructure themselves.
type ValueMarshaler interface {
	MarshalLogValue() Value
}

type transformFunc func(value any) Value

type interfaceTransform struct {
	iface     reflect.Type
	transform transformFunc
}

// Registry maps types to destructuring transforms. Registration is expected
// to happen before the pipeline starts; lookups are safe for concurrent use.
type Registry struct {
	access        sync.RWMutex
	transforms    map[reflect.Type]transformFunc
	interfaces    []interfaceTransform
	scalars       map[reflect.Type]bool
	scalarNames   map[string]bool
	projections   map[string][]string
	maxDepth      int
	maxCollection int
	maxNodes      int
}

func NewRegistry() *Registry {
	return &Registry{
		transforms:    make(map[reflect.Type]transformFunc),
		scalars:       make(map[reflect.Type]bool),
		scalarNames:   make(map[string]bool),
		projections:   make(map[string][]string),
		maxDepth:      C.DefaultMaxDepth,
		maxCollection: C.DefaultMaxCollection,
		maxNodes:      C.DefaultMaxNodes,
	}
}

// Register installs a typed transform for T. When T is an interface type the
// transform applies to every value implementing it, after exact-type matches.
func Register[T any](registry *Registry, transform func(T) Value) {
	typ := reflect.TypeFor[T]()
	wrapped := func(value any) Value {
		return transform(value.(T))
	}
	registry.access.Lock()
	defer registry.access.Unlock()
	if typ.Kind() == reflect.Interface {
		registry.interfaces = append(registry.interfaces, interfaceTransform{typ, wrapped})
	} else {
		registry.transforms[typ] = wrapped
	}
}

// RegisterScalar makes T always log as a scalar, never decomposed.
func RegisterScalar[T any](registry *Registry) {
	registry.access.Lock()
	defer registry.access.Unlock()
	registry.scalars[reflect.TypeFor[T]()] = true
}

// RegisterScalarName is RegisterScalar keyed by type name, either the short
// form ("adapter.Symbol") or the full package path form.
func (r *Registry) RegisterScalarName(typeName string) {
	r.access.Lock()
	defer r.access.Unlock()
	r.scalarNames[typeName] = true
}

// RegisterProjection destructures the named struct type into only the
// listed fields, in the listed order.
func (r *Registry) RegisterProjection(typeName string, fields []string) {
	r.access.Lock()
	defer r.access.Unlock()
	r.projections[typeName] = append([]string(nil), fields...)
}

func (r *Registry) SetMaxDepth(depth int) {
	if depth <= 0 {
		depth = C.DefaultMaxDepth
	}
	r.access.Lock()
	r.maxDepth = depth
	r.access.Unlock()
}

// Destructure captures value structurally.
func (r *Registry) Destructure(value any) Value {
	result, _ := r.capture(value, CaptureDestructure)
	return result
}

func (r *Registry) Capture(value any, mode CaptureMode) Value {
	result, _ := r.capture(value, mode)
	return result
}

func (r *Registry) capture(value any, mode CaptureMode) (result Value, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = E.New("destructure ", reflect.TypeOf(value), ": ", fmt.Sprint(recovered))
			result = StringValue(C.Unserializable)
		}
	}()
	r.access.RLock()
	state := &captureState{
		registry:      r,
		maxDepth:      r.maxDepth,
		maxCollection: r.maxCollection,
		budget:        r.maxNodes,
		path:          make(map[uintptr]bool),
	}
	r.access.RUnlock()
	return state.capture(value, mode, 0), nil
}

func (r *Registry) lookupTransform(typ reflect.Type) (transformFunc, bool) {
	r.access.RLock()
	defer r.access.RUnlock()
	if transform, ok := r.transforms[typ]; ok {
		return transform, true
	}
	for _, candidate := range r.interfaces {
		if typ.Implements(candidate.iface) {
			return candidate.transform, true
		}
	}
	return nil, false
}

func (r *Registry) isScalarType(typ reflect.Type) bool {
	r.access.RLock()
	defer r.access.RUnlock()
	if r.scalars[typ] {
		return true
	}
	if len(r.scalarNames) == 0 {
		return false
	}
	for _, name := range typeNames(typ) {
		if r.scalarNames[name] {
			return true
		}
	}
	return false
}

func (r *Registry) lookupProjection(typ reflect.Type) ([]string, bool) {
	r.access.RLock()
	defer r.access.RUnlock()
	if len(r.projections) == 0 {
		return nil, false
	}
	for _, name := range typeNames(typ) {
		if fields, ok := r.projections[name]; ok {
			return fields, true
		}
	}
	return nil, false
}

func typeNames(typ reflect.Type) []string {
	if typ.Name() == "" {
		return []string{typ.String()}
	}
	return []string{typ.String(), typ.PkgPath() + "." + typ.Name()}
}

type captureState struct {
	registry      *Registry
	maxDepth      int
	maxCollection int
	budget        int
	path          map[uintptr]bool
}

func (s *captureState) capture(value any, mode CaptureMode, depth int) Value {
	if value == nil {
		return NullValue()
	}
	if s.budget <= 0 {
		return s.fallback(value)
	}
	s.budget--
	if v, ok := value.(slog.Value); ok {
		return s.slogValue(v, depth)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return NullValue()
		}
	}
	switch mode {
	case CaptureStringify:
		return StringValue(stringify(value))
	case CaptureDefault:
		if scalar, ok := scalarOf(value); ok {
			return scalar
		}
		if s.registry.isScalarType(rv.Type()) {
			return StringValue(stringify(value))
		}
		switch v := value.(type) {
		case error:
			return StringValue(v.Error())
		case fmt.Stringer:
			return StringValue(v.String())
		}
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return s.reflective(rv, CaptureDefault, depth)
		}
	}
	return s.destructure(value, rv, depth)
}

func (s *captureState) destructure(value any, rv reflect.Value, depth int) Value {
	typ := rv.Type()
	if transform, ok := s.registry.lookupTransform(typ); ok {
		return transform(value)
	}
	if typ.Kind() == reflect.Pointer {
		if transform, ok := s.registry.lookupTransform(typ.Elem()); ok {
			return transform(rv.Elem().Interface())
		}
	}
	if s.registry.isScalarType(typ) {
		return StringValue(stringify(value))
	}
	switch v := value.(type) {
	case ValueMarshaler:
		return v.MarshalLogValue()
	case slog.LogValuer:
		return s.slogValue(v.LogValue(), depth)
	}
	if scalar, ok := scalarOf(value); ok {
		return scalar
	}
	if err, ok := value.(error); ok {
		return StringValue(err.Error())
	}
	return s.reflective(rv, CaptureDestructure, depth)
}

func (s *captureState) reflective(rv reflect.Value, mode CaptureMode, depth int) Value {
	if depth >= s.maxDepth {
		return s.fallback(rv.Interface())
	}
	switch rv.Kind() {
	case reflect.Pointer:
		pointer := rv.Pointer()
		if s.path[pointer] {
			return s.fallback(rv.Interface())
		}
		s.path[pointer] = true
		defer delete(s.path, pointer)
		return s.capture(rv.Elem().Interface(), mode, depth)
	case reflect.Struct:
		if fields, ok := s.registry.lookupProjection(rv.Type()); ok {
			return s.project(rv, fields, depth)
		}
		return s.structure(rv, depth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			pointer := rv.Pointer()
			if pointer != 0 && s.path[pointer] {
				return s.fallback(rv.Interface())
			}
		}
		length := min(rv.Len(), s.maxCollection)
		elements := make([]Value, 0, length)
		for i := 0; i < length; i++ {
			elements = append(elements, s.capture(rv.Index(i).Interface(), mode, depth+1))
		}
		return Value{kind: KindSequence, elements: elements}
	case reflect.Map:
		pointer := rv.Pointer()
		if s.path[pointer] {
			return s.fallback(rv.Interface())
		}
		s.path[pointer] = true
		defer delete(s.path, pointer)
		return s.dictionary(rv, mode, depth)
	default:
		return s.fallback(rv.Interface())
	}
}

func (s *captureState) structure(rv reflect.Value, depth int) Value {
	typ := rv.Type()
	fields := make([]Field, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		structField := typ.Field(i)
		if !structField.IsExported() {
			continue
		}
		name := structField.Name
		if tag, ok := structField.Tag.Lookup("log"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		fields = append(fields, F(name, s.capture(rv.Field(i).Interface(), CaptureDestructure, depth+1)))
	}
	return Value{kind: KindStructure, typeTag: typ.Name(), fields: fields}
}

func (s *captureState) project(rv reflect.Value, names []string, depth int) Value {
	typ := rv.Type()
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		structField, ok := typ.FieldByName(name)
		if !ok || !structField.IsExported() {
			continue
		}
		fields = append(fields, F(name, s.capture(rv.FieldByIndex(structField.Index).Interface(), CaptureDestructure, depth+1)))
	}
	return Value{kind: KindStructure, typeTag: typ.Name(), fields: fields}
}

// dictionary orders entries by rendered key, then by key type and Go syntax
// representation, so keys that render alike still sort deterministically.
// Such keys get a numeric suffix to keep field names unique.
func (s *captureState) dictionary(rv reflect.Value, mode CaptureMode, depth int) Value {
	type entry struct {
		key      string
		typeName string
		syntax   string
		value    reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iterator := rv.MapRange()
	for iterator.Next() {
		key := iterator.Key()
		if key.Kind() == reflect.Interface && !key.IsNil() {
			key = key.Elem()
		}
		entries = append(entries, entry{
			key:      stringify(iterator.Key().Interface()),
			typeName: key.Type().String(),
			syntax:   fmt.Sprintf("%#v", key.Interface()),
			value:    iterator.Value(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		if entries[i].typeName != entries[j].typeName {
			return entries[i].typeName < entries[j].typeName
		}
		return entries[i].syntax < entries[j].syntax
	})
	if len(entries) > s.maxCollection {
		entries = entries[:s.maxCollection]
	}
	used := make(map[string]bool, len(entries))
	for _, e := range entries {
		used[e.key] = true
	}
	fields := make([]Field, 0, len(entries))
	for i, e := range entries {
		name := e.key
		if i > 0 && entries[i-1].key == e.key {
			for n := 2; ; n++ {
				name = e.key + "_" + strconv.Itoa(n)
				if !used[name] {
					break
				}
			}
			used[name] = true
		}
		fields = append(fields, F(name, s.capture(e.value.Interface(), mode, depth+1)))
	}
	return Value{kind: KindStructure, fields: fields}
}

// fallback renders a value that may not be decomposed further. It never
// prints pointers, so the result only depends on observable state.
func (s *captureState) fallback(value any) Value {
	if stringer, ok := value.(fmt.Stringer); ok {
		return StringValue(stringer.String())
	}
	if scalar, ok := scalarOf(value); ok {
		return scalar
	}
	return StringValue("<" + reflect.TypeOf(value).String() + ">")
}

func (s *captureState) slogValue(value slog.Value, depth int) Value {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return StringValue(value.String())
	case slog.KindInt64:
		return Int64Value(value.Int64())
	case slog.KindUint64:
		return Uint64Value(value.Uint64())
	case slog.KindFloat64:
		return Float64Value(value.Float64())
	case slog.KindBool:
		return BoolValue(value.Bool())
	case slog.KindDuration:
		return StringValue(value.Duration().String())
	case slog.KindTime:
		return TimeValue(value.Time())
	case slog.KindGroup:
		if depth >= s.maxDepth {
			return StringValue(value.String())
		}
		attrs := value.Group()
		fields := make([]Field, 0, len(attrs))
		for _, attr := range attrs {
			fields = append(fields, F(attr.Key, s.slogValue(attr.Value, depth+1)))
		}
		return Value{kind: KindStructure, fields: fields}
	default:
		return s.capture(value.Any(), CaptureDestructure, depth+1)
	}
}

// scalarOf converts built-in scalar types. Named types with a String method
// (enums) log by name.
func scalarOf(value any) (Value, bool) {
	switch v := value.(type) {
	case string:
		return StringValue(v), true
	case bool:
		return BoolValue(v), true
	case int:
		return Int64Value(int64(v)), true
	case int8:
		return Int64Value(int64(v)), true
	case int16:
		return Int64Value(int64(v)), true
	case int32:
		return Int64Value(int64(v)), true
	case int64:
		return Int64Value(v), true
	case uint:
		return Uint64Value(uint64(v)), true
	case uint8:
		return Uint64Value(uint64(v)), true
	case uint16:
		return Uint64Value(uint64(v)), true
	case uint32:
		return Uint64Value(uint64(v)), true
	case uint64:
		return Uint64Value(v), true
	case uintptr:
		return Uint64Value(uint64(v)), true
	case float32:
		return Float64Value(float64(v)), true
	case float64:
		return Float64Value(v), true
	case time.Time:
		return TimeValue(v), true
	case time.Duration:
		return StringValue(v.String()), true
	case []byte:
		return StringValue(hex.EncodeToString(v)), true
	case Value:
		return v, true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		if stringer, ok := value.(fmt.Stringer); ok {
			return StringValue(stringer.String()), true
		}
	}
	switch rv.Kind() {
	case reflect.String:
		return StringValue(rv.String()), true
	case reflect.Bool:
		return BoolValue(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int64Value(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint64Value(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return Float64Value(rv.Float()), true
	case reflect.Complex64, reflect.Complex128:
		return StringValue(fmt.Sprint(value)), true
	}
	return Value{}, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	if scalar, ok := scalarOf(value); ok {
		return scalar.String()
	}
	return fmt.Sprint(value)
}
