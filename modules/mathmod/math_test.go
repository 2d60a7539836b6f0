package mathmod

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/jumpbridge"
)

func call(t *testing.T, name string, args ...any) (any, error) {
	t.Helper()
	v, ok := New().Attr(name)
	require.True(t, ok, "math has no member %q", name)
	fn, ok := v.(*jumpbridge.Function)
	require.True(t, ok, "%q is not a function", name)
	return fn.Fn(context.Background(), jumpbridge.Args(args))
}

func TestConstants(t *testing.T) {
	m := New()
	pi, _ := m.Attr("pi")
	assert.Equal(t, math.Pi, pi)

	v := jumpbridge.Encode(m)
	tag, ok := v.AsTagged()
	require.True(t, ok)
	assert.Equal(t, "<module 'math'>", tag.Repr)

	consts, ok := m.Attr("constants")
	require.True(t, ok)
	assert.InDelta(t, 1.618, consts.(map[string]float64)["phi"], 1e-3)
}

func TestSqrt(t *testing.T) {
	res, err := call(t, "sqrt", 16)
	require.NoError(t, err)
	assert.Equal(t, 4.0, res)

	_, err = call(t, "sqrt", -1)
	assert.EqualError(t, err, "math domain error")

	_, err = call(t, "sqrt")
	assert.Error(t, err)
	_, err = call(t, "sqrt", "four")
	assert.Error(t, err)
}

func TestRounding(t *testing.T) {
	res, err := call(t, "floor", 2.7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res)

	res, err = call(t, "ceil", -2.7)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), res)

	_, err = call(t, "floor", math.Inf(1))
	assert.EqualError(t, err, "cannot convert float to integer")
}

func TestPowHypot(t *testing.T) {
	res, err := call(t, "pow", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 1024.0, res)

	res, err = call(t, "hypot", 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res)

	res, err = call(t, "hypot", 1, 2, 2)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res, 1e-12)

	res, err = call(t, "hypot")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res)
}

func TestFsum(t *testing.T) {
	xs := []any{}
	for i := 0; i < 10; i++ {
		xs = append(xs, 0.1)
	}
	res, err := call(t, "fsum", xs)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res)

	res, err = call(t, "fsum", []any{1e100, 1.0, -1e100})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res)

	_, err = call(t, "fsum", []any{1, "x"})
	assert.Error(t, err)
}
