package jumpbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAsyncTimeout bounds asynchronous callables unless configured otherwise.
const DefaultAsyncTimeout = 60 * time.Second

// Invoker runs callables. Synchronous functions run on the caller's
// goroutine; asynchronous ones run on a dedicated goroutine under a derived
// context and the caller blocks until they finish, the context is done, or
// the timeout elapses. Panics are recovered into InvocationErrors.
type Invoker struct {
	asyncTimeout time.Duration
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewInvoker returns an Invoker. A zero asyncTimeout disables the bound.
func NewInvoker(asyncTimeout time.Duration, tracer trace.Tracer, logger *slog.Logger) *Invoker {
	return &Invoker{asyncTimeout: asyncTimeout, tracer: tracer, logger: logger}
}

// Invoke calls fn with args and returns its raw result.
func (iv *Invoker) Invoke(ctx context.Context, fn *Function, args Args) (any, error) {
	ctx, span := iv.tracer.Start(ctx, "invoke "+fn.qualifiedName(),
		trace.WithAttributes(
			attribute.String("bridge.function", fn.Name),
			attribute.String("bridge.module", fn.Module),
			attribute.Bool("bridge.async", fn.Async),
			attribute.Int("bridge.args", len(args)),
		))
	defer span.End()

	var (
		result any
		err    error
	)
	if fn.Fn == nil {
		err = newError(KindInvocation, "'%s' is not callable", fn.qualifiedName())
	} else if fn.Async {
		result, err = iv.runAsync(ctx, fn, args)
	} else {
		result, err = iv.run(ctx, fn, args)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		iv.logger.Debug("invocation failed", "function", fn.qualifiedName(), "error", err)
		return nil, err
	}
	return result, nil
}

func (iv *Invoker) run(ctx context.Context, fn *Function, args Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Kind:    KindInvocation,
				Message: fmt.Sprintf("panic calling '%s': %v", fn.qualifiedName(), r),
				Trace:   string(debug.Stack()),
			}
		}
	}()
	result, err = fn.Fn(ctx, args)
	if err != nil {
		return nil, invocationError(fn, err)
	}
	return result, nil
}

type outcome struct {
	result any
	err    error
}

func (iv *Invoker) runAsync(ctx context.Context, fn *Function, args Args) (any, error) {
	var cancel context.CancelFunc
	if iv.asyncTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, iv.asyncTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Buffered so a callable that ignores cancellation can still finish
	// without blocking forever.
	done := make(chan outcome, 1)
	go func() {
		result, err := iv.run(ctx, fn, args)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		err := ctx.Err()
		msg := fmt.Sprintf("async function '%s' was cancelled", fn.qualifiedName())
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("async function '%s' timed out after %s", fn.qualifiedName(), iv.asyncTimeout)
		}
		return nil, &Error{Kind: KindInvocation, Message: msg, Cause: err}
	}
}

func invocationError(fn *Function, err error) error {
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return wrapError(KindInvocation, err, "error calling '%s': %v", fn.qualifiedName(), err)
}
