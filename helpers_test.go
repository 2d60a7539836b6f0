package jumpbridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
)

type loaderFunc func(ctx context.Context, name string) (Module, error)

func (f loaderFunc) Load(ctx context.Context, name string) (Module, error) { return f(ctx, name) }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testInvoker(t *testing.T, asyncTimeout time.Duration) *Invoker {
	t.Helper()
	return NewInvoker(asyncTimeout, noop.NewTracerProvider().Tracer("test"), discardLogger())
}

type counter struct {
	mu sync.Mutex
	N  int64
}

func counterClass() *NativeClass {
	return NewClass("Counter", func(ctx context.Context, args Args) (any, error) {
		start, err := args.OptInt(0, 0)
		if err != nil {
			return nil, err
		}
		return &counter{N: start}, nil
	}).
		Method("incr", func(ctx context.Context, self any, args Args) (any, error) {
			c := self.(*counter)
			c.mu.Lock()
			defer c.mu.Unlock()
			c.N++
			return c.N, nil
		}).
		Method("value", func(ctx context.Context, self any, args Args) (any, error) {
			c := self.(*counter)
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.N, nil
		})
}

// resource records whether it was closed.
type resource struct {
	closed  bool
	failErr error
}

func (r *resource) Close() error {
	r.closed = true
	return r.failErr
}

func resourceClass(created *[]*resource) *NativeClass {
	return NewClass("Resource", func(ctx context.Context, args Args) (any, error) {
		r := &resource{}
		if fail, _ := args.Get(0).(bool); fail {
			r.failErr = errors.New("disk on fire")
		}
		*created = append(*created, r)
		return r, nil
	}).
		Method("closed", func(ctx context.Context, self any, args Args) (any, error) {
			return self.(*resource).closed, nil
		})
}

// calcModule is a small native module exercising every member kind.
func calcModule() *NativeModule {
	trig := NewModule("calc.trig").
		Const("right_angle", 90)

	return NewModule("calc").
		Const("pi", 3.14159).
		Const("consts", map[string]any{"answer": 42, "nested": map[string]any{"deep": "yes"}}).
		Func("add", func(ctx context.Context, args Args) (any, error) {
			var total float64
			for i := range args {
				f, err := args.Float(i)
				if err != nil {
					return nil, err
				}
				total += f
			}
			return total, nil
		}).
		Func("div", func(ctx context.Context, args Args) (any, error) {
			a, err := args.Float(0)
			if err != nil {
				return nil, err
			}
			b, err := args.Float(1)
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return nil, errors.New("division by zero")
			}
			return a / b, nil
		}).
		Func("boom", func(ctx context.Context, args Args) (any, error) {
			panic("kaboom")
		}).
		Func("echo", func(ctx context.Context, args Args) (any, error) {
			return []any(args), nil
		}).
		AsyncFunc("wait", func(ctx context.Context, args Args) (any, error) {
			d, err := args.OptFloat(0, 0)
			if err != nil {
				return nil, err
			}
			select {
			case <-time.After(time.Duration(d * float64(time.Second))):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}).
		Class(counterClass()).
		Submodule(trig)
}

func newTestBridge(t *testing.T, opts ...func(*Options)) *Bridge {
	t.Helper()
	o := Options{
		Loader:         NewNativeLoader(calcModule()),
		Logger:         discardLogger(),
		TracerProvider: noop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	b := New(o)
	t.Cleanup(func() { b.Close() })
	return b
}
