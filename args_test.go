package jumpbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsNumbers(t *testing.T) {
	args := Args{int8(3), 2.0, 2.5, "x", uint64(9)}

	f, err := args.Float(0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	n, err := args.Int(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = args.Int(2)
	assert.EqualError(t, err, "argument 3: expected integer, got float64")

	_, err = args.Float(3)
	assert.EqualError(t, err, "argument 4: expected number, got string")

	n, err = args.Int(4)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	_, err = args.Float(5)
	assert.EqualError(t, err, "missing argument 6")
}

func TestArgsOptional(t *testing.T) {
	args := Args{nil, "set"}

	s, err := args.OptText(0, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", s)

	s, err = args.OptText(1, "default")
	require.NoError(t, err)
	assert.Equal(t, "set", s)

	n, err := args.OptInt(5, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)

	_, err = args.OptFloat(1, 0)
	assert.Error(t, err)
}

func TestArgsArity(t *testing.T) {
	assert.NoError(t, Args{1, 2}.Arity(1, 2))
	assert.NoError(t, Args{1, 2, 3}.Arity(1, -1))
	assert.EqualError(t, Args{}.Arity(1, 2), "expected at least 1 arguments, got 0")
	assert.EqualError(t, Args{1, 2, 3}.Arity(0, 2), "expected at most 2 arguments, got 3")
}

func TestArgsContainers(t *testing.T) {
	args := Args{[]any{1, 2}, map[any]any{"k": 1, 2: "v"}, map[string]any{"a": true}}

	list, err := args.List(0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	m, err := args.Map(1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": 1, "2": "v"}, m)

	m, err = args.Map(2)
	require.NoError(t, err)
	assert.Equal(t, true, m["a"])

	_, err = args.List(2)
	assert.Error(t, err)
}

func TestArgsBytes(t *testing.T) {
	args := Args{
		[]byte("raw"),
		"text",
		map[string]any{"__type__": "bytes", "__value__": []any{int64(104), 105.0}},
		map[string]any{"__type__": "set", "__value__": []any{}},
	}

	for i, want := range []string{"raw", "text", "hi"} {
		b, err := args.Bytes(i)
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
	_, err := args.Bytes(3)
	assert.Error(t, err)
}

func TestArgsTime(t *testing.T) {
	want := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	args := Args{
		want,
		"2024-03-04T05:06:07Z",
		map[string]any{"__type__": "datetime", "__value__": "2024-03-04T05:06:07Z"},
		"yesterday",
		42,
	}

	for i := 0; i < 3; i++ {
		got, err := args.Time(i)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "argument %d: got %s", i, got)
	}

	_, err := args.Time(3)
	assert.ErrorContains(t, err, "argument 4")
	_, err = args.Time(4)
	assert.EqualError(t, err, "argument 5: expected datetime, got int")
}

func TestArgsBool(t *testing.T) {
	b, err := Args{true}.Bool(0)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = Args{"true"}.Bool(0)
	assert.Error(t, err)
}
