// Package mathmod provides the "math" module.
package mathmod

import (
	"context"
	"errors"
	"math"

	"github.com/richinsley/jumpbridge"
)

// New builds the math module.
func New() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("math").
		Const("pi", math.Pi).
		Const("e", math.E).
		Const("tau", 2*math.Pi).
		Const("inf", math.Inf(1)).
		Const("nan", math.NaN()).
		Const("constants", map[string]float64{
			"pi":    math.Pi,
			"e":     math.E,
			"phi":   math.Phi,
			"sqrt2": math.Sqrt2,
		}).
		Func("sqrt", unary(func(x float64) (float64, error) {
			if x < 0 {
				return 0, errors.New("math domain error")
			}
			return math.Sqrt(x), nil
		})).
		Func("floor", rounding(math.Floor)).
		Func("ceil", rounding(math.Ceil)).
		Func("pow", pow).
		Func("hypot", hypot).
		Func("fsum", fsum)
}

func unary(f func(float64) (float64, error)) jumpbridge.Func {
	return func(_ context.Context, args jumpbridge.Args) (any, error) {
		if err := args.Arity(1, 1); err != nil {
			return nil, err
		}
		x, err := args.Float(0)
		if err != nil {
			return nil, err
		}
		return f(x)
	}
}

// rounding returns integers, as floor and ceil do for finite input.
func rounding(f func(float64) float64) jumpbridge.Func {
	return func(_ context.Context, args jumpbridge.Args) (any, error) {
		if err := args.Arity(1, 1); err != nil {
			return nil, err
		}
		x, err := args.Float(0)
		if err != nil {
			return nil, err
		}
		r := f(x)
		if math.IsInf(r, 0) || math.IsNaN(r) || math.Abs(r) >= 1<<63 {
			return nil, errors.New("cannot convert float to integer")
		}
		return int64(r), nil
	}
}

func pow(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(2, 2); err != nil {
		return nil, err
	}
	x, err := args.Float(0)
	if err != nil {
		return nil, err
	}
	y, err := args.Float(1)
	if err != nil {
		return nil, err
	}
	return math.Pow(x, y), nil
}

func hypot(_ context.Context, args jumpbridge.Args) (any, error) {
	var acc float64
	for i := range args {
		x, err := args.Float(i)
		if err != nil {
			return nil, err
		}
		acc = math.Hypot(acc, x)
	}
	return acc, nil
}

// fsum adds a list of numbers with Neumaier compensation.
func fsum(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 1); err != nil {
		return nil, err
	}
	xs, err := args.List(0)
	if err != nil {
		return nil, err
	}
	var sum, comp float64
	for i := range xs {
		x, err := jumpbridge.Args(xs).Float(i)
		if err != nil {
			return nil, err
		}
		t := sum + x
		if math.Abs(sum) >= math.Abs(x) {
			comp += (sum - t) + x
		} else {
			comp += (x - t) + sum
		}
		sum = t
	}
	return sum + comp, nil
}
