package jumpbridge

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Exporter is implemented by values that hand the codec a plain data view of
// themselves instead of being described as opaque objects.
type Exporter interface {
	Export() any
}

// Set is an unordered collection of unique, comparable elements.
// It encodes as Tagged{set}.
type Set map[any]struct{}

// NewSet builds a Set from items. Items that are not comparable are skipped.
func NewSet(items ...any) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was comparable.
func (s Set) Add(item any) bool {
	if item != nil && !reflect.TypeOf(item).Comparable() {
		return false
	}
	s[item] = struct{}{}
	return true
}

// Has reports whether item is a member of s.
func (s Set) Has(item any) bool {
	if item != nil && !reflect.TypeOf(item).Comparable() {
		return false
	}
	_, ok := s[item]
	return ok
}

var (
	emptyType     = reflect.TypeOf(struct{}{})
	timeType      = reflect.TypeOf(time.Time{})
	stringerType  = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	textMarshaler = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Encode converts any Go value into its wire Value. It is total: a value
// whose description panics is rendered as Tagged{unknown} instead. Nested
// values are encoded independently, so one bad element only degrades itself.
//
// Self-referential values (a pointer cycle through exported struct fields)
// do not terminate.
func Encode(v any) (out Value) {
	defer func() {
		if r := recover(); r != nil {
			out = Tag(Tagged{Type: TagUnknown, Repr: safeRepr(v)})
		}
	}()
	return encode(v)
}

func encode(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case *Value:
		if x == nil {
			return Null
		}
		return *x
	case bool:
		return Bool(x)
	case string:
		return Str(x)
	case float32:
		return Num(float64(x))
	case float64:
		return Num(x)
	case uint64:
		if x > math.MaxInt64 {
			return Num(float64(x))
		}
		return Int(int64(x))
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Num(float64(x))
		}
		return Int(int64(x))
	case []byte:
		if x == nil {
			return Null
		}
		return BytesValue(x)
	case time.Time:
		return Tag(Tagged{Type: TagDatetime, Text: x.Format(time.RFC3339Nano)})
	case *Function:
		if x == nil {
			return Null
		}
		return x.describe()
	case Class:
		return Tag(Tagged{Type: TagClass, Name: x.Name(), Module: x.Module()})
	case Module:
		return Tag(Tagged{Type: TagObject, Class: "module", Repr: fmt.Sprintf("<module '%s'>", x.Name())})
	case reflect.Type:
		return Tag(Tagged{Type: TagClass, Name: typeName(x), Module: x.PkgPath()})
	case Exporter:
		return Encode(x.Export())
	}
	if n, ok := toInt64(v); ok {
		return Int(n)
	}
	return encodeReflect(v, reflect.ValueOf(v))
}

func encodeReflect(v any, rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return Int(int64(u))
		}
		return Num(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return Num(rv.Float())
	case reflect.String:
		return Str(rv.String())
	case reflect.Pointer:
		if rv.IsNil() {
			return Null
		}
		if rv.Elem().Kind() == reflect.Struct && rv.Elem().Type() != timeType {
			return encodeStruct(v, rv.Elem())
		}
		return Encode(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return Null
		}
		return Encode(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return Null
		}
		fallthrough
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return BytesValue(b)
		}
		out := make([]Value, rv.Len())
		for i := range out {
			out[i] = Encode(rv.Index(i).Interface())
		}
		return Arr(out...)
	case reflect.Map:
		if rv.IsNil() {
			return Null
		}
		if rv.Type().Elem() == emptyType {
			return encodeSet(rv)
		}
		return encodeMap(rv)
	case reflect.Struct:
		return encodeStruct(v, rv)
	case reflect.Func:
		if rv.IsNil() {
			return Null
		}
		module, name := funcName(rv)
		return Tag(Tagged{Type: TagFunction, Name: name, Module: module})
	}
	return Tag(Tagged{Type: TagObject, Class: typeName(rv.Type()), Repr: safeRepr(v)})
}

func encodeSet(rv reflect.Value) Value {
	items := make([]Value, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		items = append(items, Encode(iter.Key().Interface()))
	}
	sortValues(items)
	return Tag(Tagged{Type: TagSet, Items: items})
}

func encodeMap(rv reflect.Value) Value {
	out := make(map[string]Value, rv.Len())
	if rv.Type().Key().Kind() == reflect.String {
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Encode(iter.Value().Interface())
		}
		return Obj(out)
	}

	// Stringified keys can collide; visit them in a fixed order so the
	// surviving entry does not depend on map iteration.
	type entry struct {
		key, order string
		val        reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		entries = append(entries, entry{key: keyString(k), order: fmt.Sprintf("%#v", k.Interface()), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].order < entries[j].order
	})
	for _, e := range entries {
		out[e.key] = Encode(e.val.Interface())
	}
	return Obj(out)
}

// keyString renders a non-string map key.
func keyString(k reflect.Value) string {
	if k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.Type().Implements(textMarshaler) {
		if text, err := k.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			return string(text)
		}
	}
	if k.Type().Implements(stringerType) {
		return k.Interface().(fmt.Stringer).String()
	}
	return fmt.Sprint(k.Interface())
}

func encodeStruct(v any, rv reflect.Value) Value {
	rt := rv.Type()
	fields := make(map[string]Value)
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		fields[f.Name] = Encode(rv.Field(i).Interface())
	}
	return Tag(Tagged{
		Type:   TagObject,
		Class:  typeName(rt),
		Module: rt.PkgPath(),
		Repr:   safeRepr(v),
		Fields: fields,
	})
}

func typeName(t reflect.Type) string {
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// funcName splits the runtime name of a func value into package path and name.
func funcName(rv reflect.Value) (module, name string) {
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "", typeName(rv.Type())
	}
	full := fn.Name()
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return "", full
	}
	return full[:slash+1+dot], full[slash+2+dot:]
}

func safeRepr(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<%T>", v)
		}
	}()
	if st, ok := v.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%+v", v)
}

// toInt64 reports the value of any signed integer, or an unsigned integer
// that fits in int64.
func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

// toFloat64 reports the value of any Go number.
func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	if n, ok := toInt64(raw); ok {
		return float64(n), true
	}
	return 0, false
}
