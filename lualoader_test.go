package jumpbridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetLua = `
local M = {}

M.greeting = "hello"
M.config = { name = "demo", ports = { 80, 443 }, ratio = 0.5 }
M.loop = {}
M.loop.self = M.loop
M.nested = { add = function(a, b) return a + b end }

function M.hello(name)
  return M.greeting .. ", " .. name
end

function M.fail()
  error("bad thing")
end

function M.count(t)
  local n = 0
  for _ in pairs(t) do
    n = n + 1
  end
  return n
end

function M.nothing() end

return M
`

func newTestLua(t *testing.T) *LuaLoader {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.lua"), []byte(greetLua), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notatable.lua"), []byte("return 42\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "syntax.lua"), []byte("return {\n"), 0o644))

	l, err := NewLuaLoader(LuaOptions{Paths: []string{dir}, Logger: discardLogger()})
	require.NoError(t, err)
	return l
}

func loadLua(t *testing.T, l *LuaLoader, name string) Module {
	t.Helper()
	m, err := l.Load(context.Background(), name)
	require.NoError(t, err)
	return m
}

func TestLuaVersion(t *testing.T) {
	l := newTestLua(t)
	assert.Equal(t, "5.2", l.Version().MinorString())
}

func TestLuaLoadErrors(t *testing.T) {
	l := newTestLua(t)
	ctx := context.Background()

	_, err := l.Load(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	_, err = l.Load(ctx, "notatable")
	assert.EqualError(t, err, "lua module 'notatable' did not return a table")

	_, err = l.Load(ctx, "syntax")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrModuleNotFound)
}

func TestLuaAttributes(t *testing.T) {
	l := newTestLua(t)
	mod := loadLua(t, l, "greet")
	assert.Equal(t, "greet", mod.Name())
	e := NewEngine(testInvoker(t, time.Second))
	ctx := context.Background()

	tests := []struct {
		name string
		path []string
		want any
	}{
		{"string", []string{"greeting"}, "hello"},
		{"table", []string{"config"}, map[string]any{"name": "demo", "ports": []any{int64(80), int64(443)}, "ratio": 0.5}},
		{"nested field", []string{"config", "ports"}, []any{int64(80), int64(443)}},
		{
			"function",
			[]string{"hello"},
			map[string]any{"__type__": "function", "__name__": "hello", "__module__": "greet", "__async__": false},
		},
		{
			"cycle",
			[]string{"loop"},
			map[string]any{"self": map[string]any{"__type__": "object", "__class__": "table", "__repr__": "<cycle>"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.GetAttribute(ctx, mod, tt.path)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, v.Interface()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := e.GetAttribute(ctx, mod, []string{"config", "missing"})
	assert.EqualError(t, err, "LookupError: attribute 'missing' not found in module 'greet'")
	_, err = e.GetAttribute(ctx, mod, []string{"greeting", "len"})
	assert.ErrorIs(t, err, ErrLookup)
}

func TestLuaCalls(t *testing.T) {
	l := newTestLua(t)
	mod := loadLua(t, l, "greet")
	e := NewEngine(testInvoker(t, time.Second))
	ctx := context.Background()

	v, err := e.Call(ctx, mod, "hello", Args{"world"})
	require.NoError(t, err)
	assert.Equal(t, Str("hello, world"), v)

	v, err = e.Call(ctx, mod, "nested.add", Args{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Int(5), v)

	v, err = e.Call(ctx, mod, "count", Args{map[string]any{"a": 1, "b": []any{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, Int(2), v)

	v, err = e.Call(ctx, mod, "nothing", nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = e.Call(ctx, mod, "fail", nil)
	assert.ErrorIs(t, err, ErrInvocation)
	assert.Contains(t, err.Error(), "bad thing")

	_, err = e.Call(ctx, mod, "greeting", nil)
	assert.ErrorContains(t, err, "is not callable")
}

func TestLuaBundledStats(t *testing.T) {
	l := newTestLua(t)
	mod := loadLua(t, l, "stats")
	e := NewEngine(testInvoker(t, time.Second))
	ctx := context.Background()

	call := func(fn string, args ...any) Value {
		t.Helper()
		v, err := e.Call(ctx, mod, fn, Args(args))
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, Int(10), call("sum", []any{1, 2, 3, 4}))
	assert.Equal(t, Num(2.5), call("mean", []any{1, 2, 3, 4}))
	assert.Equal(t, Int(2), call("median", []any{3, 1, 2}))
	assert.Equal(t, Num(2.5), call("median", []any{4, 1, 3, 2}))

	sd, _ := call("stdev", []any{2, 4, 4, 4, 5, 5, 7, 9}).AsFloat()
	assert.InDelta(t, 2.138, sd, 1e-3)

	if diff := cmp.Diff([]any{int64(1), int64(9)}, call("minmax", []any{5, 9, 1}).Interface()); diff != "" {
		t.Errorf("minmax mismatch (-want +got):\n%s", diff)
	}

	_, err := e.Call(ctx, mod, "mean", Args{[]any{}})
	assert.ErrorContains(t, err, "expected a non-empty list of numbers")

	version, err := e.GetAttribute(ctx, mod, []string{"version"})
	require.NoError(t, err)
	assert.Equal(t, Str("1.0"), version)
}

func TestLuaClassInstances(t *testing.T) {
	l := newTestLua(t)
	mod := loadLua(t, l, "stats")
	reg := NewInstanceRegistry(testInvoker(t, time.Second))
	ctx := context.Background()

	class, err := NewEngine(testInvoker(t, time.Second)).GetAttribute(ctx, mod, []string{"Accumulator"})
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]any{"__type__": "class", "__name__": "Accumulator", "__module__": "stats"}, class.Interface()); diff != "" {
		t.Errorf("class mismatch (-want +got):\n%s", diff)
	}

	id, err := reg.Create(ctx, mod, "Accumulator", Args{"temps"})
	require.NoError(t, err)

	for i, x := range []any{3, 5} {
		n, err := reg.CallMethod(ctx, id, "add", Args{x})
		require.NoError(t, err)
		assert.Equal(t, Int(int64(i+1)), n)
	}

	mean, err := reg.CallMethod(ctx, id, "mean", nil)
	require.NoError(t, err)
	assert.Equal(t, Int(4), mean)

	_, err = reg.CallMethod(ctx, id, "add", Args{"x"})
	assert.ErrorContains(t, err, "add expects a number")

	_, err = reg.CallMethod(ctx, id, "missing", nil)
	assert.EqualError(t, err, "LookupError: method 'missing' not found on instance of 'Accumulator'")

	_, err = reg.CallMethod(ctx, id, "reset", nil)
	require.NoError(t, err)
	mean, err = reg.CallMethod(ctx, id, "mean", nil)
	require.NoError(t, err)
	assert.True(t, mean.IsNull())

	require.NoError(t, reg.Release(id))
	_, err = reg.CallMethod(ctx, id, "mean", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLuaSeparateInstances(t *testing.T) {
	l := newTestLua(t)
	mod := loadLua(t, l, "stats")
	reg := NewInstanceRegistry(testInvoker(t, time.Second))
	ctx := context.Background()

	a, err := reg.Create(ctx, mod, "Accumulator", nil)
	require.NoError(t, err)
	b, err := reg.Create(ctx, mod, "Accumulator", nil)
	require.NoError(t, err)

	_, err = reg.CallMethod(ctx, a, "add", Args{1})
	require.NoError(t, err)
	n, err := reg.CallMethod(ctx, b, "add", Args{1})
	require.NoError(t, err)
	assert.Equal(t, Int(1), n)
}

func TestLuaCustomBundle(t *testing.T) {
	bundle := fstest.MapFS{
		"lua/answer.lua": {Data: []byte("return { value = 42 }\n")},
	}
	l, err := NewLuaLoader(LuaOptions{Bundled: bundle})
	require.NoError(t, err)

	mod := loadLua(t, l, "answer")
	v, ok := mod.Attr("value")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, err = l.Load(context.Background(), "stats")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestLuaThroughBridge(t *testing.T) {
	b := newTestBridge(t, func(o *Options) {
		o.Loader = ChainLoader{NewNativeLoader(calcModule()), newTestLua(t)}
	})
	ctx := context.Background()

	succeeded(t, b.Handle(ctx, &Request{Kind: RequestImport, Module: "stats"}))
	succeeded(t, b.Handle(ctx, &Request{Kind: RequestImport, Module: "calc"}))

	resp := succeeded(t, b.Handle(ctx, &Request{Kind: RequestCall, Module: "stats", Function: "mean", Args: []any{[]any{2.0, 4.0}}}))
	assert.Equal(t, Int(3), resp.Value())

	resp = succeeded(t, b.Handle(ctx, &Request{Kind: RequestCreateInstance, Module: "stats", Class: "Accumulator"}))
	id := resp.InstanceID
	succeeded(t, b.Handle(ctx, &Request{Kind: RequestCallMethod, InstanceID: id, Method: "add", Args: []any{1.5}}))
	succeeded(t, b.Handle(ctx, &Request{Kind: RequestReleaseInstance, InstanceID: id}))
}
