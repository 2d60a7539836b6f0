package jumpbridge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Shopify/go-lua"
)

// pushGo pushes a decoded wire argument onto the Lua stack.
func pushGo(st *lua.State, v any) {
	switch x := v.(type) {
	case nil:
		st.PushNil()
	case bool:
		st.PushBoolean(x)
	case string:
		st.PushString(x)
	case []byte:
		st.PushString(string(x))
	case float64:
		st.PushNumber(x)
	case float32:
		st.PushNumber(float64(x))
	case Value:
		pushGo(st, x.Interface())
	case time.Time:
		st.PushString(x.Format(time.RFC3339Nano))
	case []any:
		st.NewTable()
		for i, item := range x {
			pushGo(st, item)
			st.RawSetInt(-2, i+1)
		}
	case map[string]any:
		st.NewTable()
		for k, item := range x {
			pushGo(st, item)
			st.SetField(-2, k)
		}
	case map[any]any:
		st.NewTable()
		for k, item := range x {
			pushGo(st, k)
			pushGo(st, item)
			st.RawSet(-3)
		}
	default:
		if n, ok := toInt64(v); ok {
			st.PushInteger(int(n))
			return
		}
		if f, ok := toFloat64(v); ok {
			st.PushNumber(f)
			return
		}
		st.PushUserData(v)
	}
}

// toGo converts the value at index into plain Go data. Tables become []any
// when their keys are exactly 1..n, otherwise maps. Functions become
// descriptors named after the key they were found under.
func toGo(st *lua.State, index int, name, module string) any {
	index = st.AbsIndex(index)
	st.NewTable()
	c := converter{st: st, seen: st.Top(), module: module}
	defer st.Pop(1)
	return c.value(index, name)
}

type converter struct {
	st     *lua.State
	seen   int
	module string
}

var luaCycle = Tag(Tagged{Type: TagObject, Class: "table", Repr: "<cycle>"})

func (c *converter) value(index int, name string) any {
	st := c.st
	switch st.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil
	case lua.TypeBoolean:
		return st.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := st.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeString:
		s, _ := st.ToString(index)
		return s
	case lua.TypeTable:
		return c.table(index)
	case lua.TypeFunction:
		if name == "" {
			name = "function"
		}
		return &Function{Name: name, Module: c.module}
	case lua.TypeUserData:
		return st.ToUserData(index)
	}
	typ := lua.TypeNameOf(st, index)
	return Tag(Tagged{Type: TagObject, Class: typ, Repr: "<" + typ + ">"})
}

func normalizeNumber(n float64) any {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int64(n)
	}
	return n
}

type luaPair struct {
	key any
	val any
}

func (c *converter) table(index int) any {
	st := c.st

	// Only tables on the current path count as cycles; shared subtables are
	// converted once per reference.
	st.PushValue(index)
	st.RawGet(c.seen)
	onPath := st.ToBoolean(-1)
	st.Pop(1)
	if onPath {
		return luaCycle
	}
	st.PushValue(index)
	st.PushBoolean(true)
	st.RawSet(c.seen)
	defer func() {
		st.PushValue(index)
		st.PushNil()
		st.RawSet(c.seen)
	}()

	var pairs []luaPair
	isArray, allStrings := true, true
	maxIndex := int64(0)
	st.PushNil()
	for st.Next(index) {
		var key any
		switch st.TypeOf(-2) {
		case lua.TypeString:
			key, _ = st.ToString(-2)
		case lua.TypeNumber:
			n, _ := st.ToNumber(-2)
			key = normalizeNumber(n)
		case lua.TypeBoolean:
			key = st.ToBoolean(-2)
		default:
			st.Pop(1)
			continue
		}
		if i, ok := key.(int64); ok && i > 0 {
			maxIndex = max(maxIndex, i)
		} else {
			isArray = false
		}
		if _, ok := key.(string); !ok {
			allStrings = false
		}
		pairs = append(pairs, luaPair{key: key, val: c.value(st.AbsIndex(-1), fmt.Sprint(key))})
		st.Pop(1)
	}

	switch {
	case len(pairs) > 0 && isArray && maxIndex == int64(len(pairs)):
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].key.(int64) < pairs[j].key.(int64) })
		out := make([]any, len(pairs))
		for i, p := range pairs {
			out[i] = p.val
		}
		return out
	case allStrings:
		out := make(map[string]any, len(pairs))
		for _, p := range pairs {
			out[p.key.(string)] = p.val
		}
		return out
	}
	out := make(map[any]any, len(pairs))
	for _, p := range pairs {
		out[p.key] = p.val
	}
	return out
}
