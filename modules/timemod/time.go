// Package timemod provides the "time" module. Datetimes travel in the
// tagged datetime form; layouts use Go reference-time syntax.
package timemod

import (
	"context"
	"time"

	"github.com/richinsley/jumpbridge"
)

// New builds the time module. now reads the given clock, so tests can pin it.
func New(now func() time.Time) *jumpbridge.NativeModule {
	if now == nil {
		now = time.Now
	}
	return jumpbridge.NewModule("time").
		Const("RFC3339", time.RFC3339).
		Const("DateOnly", time.DateOnly).
		Func("now", func(context.Context, jumpbridge.Args) (any, error) {
			return now(), nil
		}).
		Func("utc", func(context.Context, jumpbridge.Args) (any, error) {
			return now().UTC(), nil
		}).
		Func("time", func(context.Context, jumpbridge.Args) (any, error) {
			return float64(now().UnixNano()) / 1e9, nil
		}).
		Func("parse", parse).
		Func("format", format).
		AsyncFunc("sleep", sleep)
}

// parse(text, layout=RFC3339)
func parse(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 2); err != nil {
		return nil, err
	}
	text, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	layout, err := args.OptText(1, time.RFC3339Nano)
	if err != nil {
		return nil, err
	}
	return time.Parse(layout, text)
}

// format(t, layout=RFC3339)
func format(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 2); err != nil {
		return nil, err
	}
	t, err := args.Time(0)
	if err != nil {
		return nil, err
	}
	layout, err := args.OptText(1, time.RFC3339)
	if err != nil {
		return nil, err
	}
	return t.Format(layout), nil
}

// sleep(seconds) waits, giving up early when the call is cancelled.
func sleep(ctx context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 1); err != nil {
		return nil, err
	}
	secs, err := args.Float(0)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
