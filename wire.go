package jumpbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// ValueKind enumerates the variants of the wire Value union.
type ValueKind uint8

const (
	ValueNull   ValueKind = iota // no payload
	ValueBool                    // bool
	ValueInt                     // int64
	ValueFloat                   // float64
	ValueString                  // string
	ValueList                    // []Value
	ValueMap                     // map[string]Value
	ValueTagged                  // *Tagged
)

// TagType is the discriminator of a Tagged value.
type TagType string

const (
	TagBytes    TagType = "bytes"
	TagSet      TagType = "set"
	TagDatetime TagType = "datetime"
	TagFunction TagType = "function"
	TagMethod   TagType = "method"
	TagClass    TagType = "class"
	TagObject   TagType = "object"
	TagUnknown  TagType = "unknown"
)

// Wire keys of the tagged form.
const (
	keyType   = "__type__"
	keyValue  = "__value__"
	keyName   = "__name__"
	keyModule = "__module__"
	keyAsync  = "__async__"
	keyClass  = "__class__"
	keyRepr   = "__repr__"
	keyDict   = "__dict__"
)

// Value is the JSON-compatible encoded form of any bridged value.
//
// It is a closed union: exactly one payload is meaningful for a given Kind.
// Bytes travel as Tagged{bytes}. The zero Value is Null.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
	tag  *Tagged
}

// Tagged wraps a value that has no native wire variant.
// Which fields are meaningful depends on Type:
//
//	bytes, set      Items
//	datetime        Text
//	function/method Name, Module, Async
//	class           Name, Module
//	object          Class, Module, Repr, Fields (nil when the value exposes no fields)
//	unknown         Repr
type Tagged struct {
	Type   TagType
	Items  []Value
	Text   string
	Name   string
	Module string
	Async  bool
	Class  string
	Repr   string
	Fields map[string]Value
}

// Null is the null Value.
var Null = Value{}

// Constructors for the native variants.
func Bool(b bool) Value            { return Value{kind: ValueBool, b: b} }
func Int(n int64) Value            { return Value{kind: ValueInt, i: n} }
func Num(f float64) Value          { return Value{kind: ValueFloat, f: f} }
func Str(s string) Value           { return Value{kind: ValueString, s: s} }
func Arr(xs ...Value) Value        { return Value{kind: ValueList, list: xs} }
func Obj(m map[string]Value) Value { return Value{kind: ValueMap, m: m} }
func Tag(t Tagged) Value           { return Value{kind: ValueTagged, tag: &t} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == ValueNull }

func (v Value) AsTagged() (*Tagged, bool) { return v.tag, v.kind == ValueTagged }

// BytesValue builds the Tagged{bytes} form of b.
func BytesValue(b []byte) Value {
	items := make([]Value, len(b))
	for i, c := range b {
		items[i] = Int(int64(c))
	}
	return Tag(Tagged{Type: TagBytes, Items: items})
}

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == ValueInt }

// AsFloat returns the numeric payload of Int and Float values.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case ValueFloat:
		return v.f, true
	case ValueInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) { return v.s, v.kind == ValueString }

func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == ValueList }

func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == ValueMap }

// Bytes reconstructs the payload of a Tagged{bytes} value.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != ValueTagged || v.tag.Type != TagBytes {
		return nil, false
	}
	out := make([]byte, len(v.tag.Items))
	for i, item := range v.tag.Items {
		n, ok := item.AsFloat()
		if !ok || n < 0 || n > 255 || n != math.Trunc(n) {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

// Interface returns the plain wire tree of v: nil, bool, int64, float64,
// string, []any and map[string]any, with tagged values rendered as
// "__type__" maps.
func (v Value) Interface() any {
	return v.wire(false)
}

func (v Value) wire(jsonSafe bool) any {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueInt:
		return v.i
	case ValueFloat:
		if jsonSafe && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
			// JSON has no literal for these; keep the value readable.
			return strconv.FormatFloat(v.f, 'g', -1, 64)
		}
		return v.f
	case ValueString:
		return v.s
	case ValueList:
		return wireList(v.list, jsonSafe)
	case ValueMap:
		return wireMap(v.m, jsonSafe)
	case ValueTagged:
		return v.tag.wire(jsonSafe)
	default:
		return nil
	}
}

func wireList(xs []Value, jsonSafe bool) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x.wire(jsonSafe)
	}
	return out
}

func wireMap(m map[string]Value, jsonSafe bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, x := range m {
		out[k] = x.wire(jsonSafe)
	}
	return out
}

func (t *Tagged) wire(jsonSafe bool) map[string]any {
	out := map[string]any{keyType: string(t.Type)}
	switch t.Type {
	case TagBytes, TagSet:
		out[keyValue] = wireList(t.Items, jsonSafe)
	case TagDatetime:
		out[keyValue] = t.Text
	case TagFunction, TagMethod:
		out[keyName] = t.Name
		out[keyModule] = nullable(t.Module)
		out[keyAsync] = t.Async
	case TagClass:
		out[keyName] = t.Name
		out[keyModule] = nullable(t.Module)
	case TagObject:
		out[keyClass] = t.Class
		out[keyRepr] = t.Repr
		if t.Fields != nil {
			out[keyModule] = nullable(t.Module)
			out[keyDict] = wireMap(t.Fields, jsonSafe)
		}
	default:
		out[keyRepr] = t.Repr
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// String renders a short debug form of v.
func (v Value) String() string {
	switch v.kind {
	case ValueNull:
		return "null"
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.s)
	case ValueList:
		return fmt.Sprintf("<list len=%d>", len(v.list))
	case ValueMap:
		return fmt.Sprintf("<map len=%d>", len(v.m))
	default:
		return fmt.Sprintf("<%s>", v.tag.Type)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.wire(true))
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = Decode(raw)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(v.wire(false))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*v = Decode(raw)
	return nil
}

// Decode rebuilds a Value from a decoded wire tree, as produced by the JSON,
// msgpack or protobuf serializers. Maps carrying a known "__type__" become
// Tagged values; everything else maps onto the native variants.
func Decode(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return Str(x)
	case []byte:
		return BytesValue(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int(n)
		}
		f, _ := x.Float64()
		return Num(f)
	case float32:
		return Num(float64(x))
	case float64:
		return Num(x)
	case []any:
		out := make([]Value, len(x))
		for i, item := range x {
			out[i] = Decode(item)
		}
		return Arr(out...)
	case map[string]any:
		return decodeMap(x)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[fmt.Sprint(k)] = item
		}
		return decodeMap(m)
	}
	if n, ok := toInt64(raw); ok {
		return Int(n)
	}
	if u, ok := raw.(uint64); ok {
		return Num(float64(u))
	}
	return Encode(raw)
}

func decodeMap(m map[string]any) Value {
	if typ, ok := m[keyType].(string); ok {
		if t, ok := decodeTagged(TagType(typ), m); ok {
			return Tag(t)
		}
	}
	out := make(map[string]Value, len(m))
	for k, item := range m {
		out[k] = Decode(item)
	}
	return Obj(out)
}

func decodeTagged(typ TagType, m map[string]any) (Tagged, bool) {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	t := Tagged{Type: typ}
	switch typ {
	case TagBytes, TagSet:
		items, _ := Decode(m[keyValue]).AsList()
		t.Items = items
	case TagDatetime:
		t.Text = str(keyValue)
	case TagFunction, TagMethod:
		t.Name = str(keyName)
		t.Module = str(keyModule)
		t.Async, _ = m[keyAsync].(bool)
	case TagClass:
		t.Name = str(keyName)
		t.Module = str(keyModule)
	case TagObject:
		t.Class = str(keyClass)
		t.Repr = str(keyRepr)
		t.Module = str(keyModule)
		if fields, ok := Decode(m[keyDict]).AsMap(); ok {
			t.Fields = fields
		}
	case TagUnknown:
		t.Repr = str(keyRepr)
	default:
		return Tagged{}, false
	}
	return t, true
}

// sortValues orders set members by their debug rendering so encoding stays deterministic.
func sortValues(xs []Value) {
	sort.SliceStable(xs, func(i, j int) bool {
		return fmt.Sprint(xs[i].Interface()) < fmt.Sprint(xs[j].Interface())
	})
}
