package jumpbridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/richinsley/jumpbridge"

// HandlerFunc serves one request kind. The returned response needs no ID or
// Success flag; the dispatcher fills both in.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Options configure a Bridge.
type Options struct {
	// Loader resolves module names. Required.
	Loader Loader

	// Installer is used by auto-install and install requests. Nil disables installation.
	Installer Installer

	// AsyncTimeout bounds asynchronous callables. Zero means DefaultAsyncTimeout;
	// a negative value disables the bound.
	AsyncTimeout time.Duration

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// Bridge routes requests to handlers and wraps every outcome in a Response.
type Bridge struct {
	modules   *ModuleRegistry
	instances *InstanceRegistry
	engine    *Engine
	installer Installer

	handlers    map[string]HandlerFunc
	handlerLock sync.RWMutex

	logger *slog.Logger
	tracer trace.Tracer
}

func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	installer := opts.Installer
	if installer == nil {
		installer = NopInstaller{}
	}
	timeout := opts.AsyncTimeout
	switch {
	case timeout == 0:
		timeout = DefaultAsyncTimeout
	case timeout < 0:
		timeout = 0
	}

	tracer := tp.Tracer(instrumentationName)
	invoker := NewInvoker(timeout, tracer, logger)
	b := &Bridge{
		modules:   NewModuleRegistry(opts.Loader, installer, logger),
		instances: NewInstanceRegistry(invoker),
		engine:    NewEngine(invoker),
		installer: installer,
		handlers:  make(map[string]HandlerFunc),
		logger:    logger,
		tracer:    tracer,
	}

	b.RegisterHandler(RequestImport, b.handleImport)
	b.RegisterHandler(RequestInstall, b.handleInstall)
	b.RegisterHandler(RequestCall, b.handleCall)
	b.RegisterHandler(RequestGet, b.handleGet)
	b.RegisterHandler(RequestCreateInstance, b.handleCreateInstance)
	b.RegisterHandler(RequestCallMethod, b.handleCallMethod)
	b.RegisterHandler(RequestReleaseInstance, b.handleReleaseInstance)
	b.RegisterHandler(RequestModules, b.handleModules)
	return b
}

// RegisterHandler adds a handler for a request kind. It panics if the kind is taken.
func (b *Bridge) RegisterHandler(kind string, h HandlerFunc) {
	b.handlerLock.Lock()
	defer b.handlerLock.Unlock()
	if _, exists := b.handlers[kind]; exists {
		panic(fmt.Sprintf("handler for %q already registered", kind))
	}
	b.handlers[kind] = h
}

func (b *Bridge) Modules() *ModuleRegistry { return b.modules }

func (b *Bridge) Instances() *InstanceRegistry { return b.instances }

func (b *Bridge) Engine() *Engine { return b.engine }

// Close releases every live instance.
func (b *Bridge) Close() error {
	return b.instances.Close()
}

// Handle serves one request. It never fails: errors and panics become
// unsuccessful responses carrying the error text.
func (b *Bridge) Handle(ctx context.Context, req *Request) (resp *Response) {
	ctx, span := b.tracer.Start(ctx, "bridge."+req.Kind,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("bridge.request_id", req.ID),
			attribute.String("bridge.kind", req.Kind),
			attribute.String("bridge.module", req.Module),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			resp = b.failure(req, &Error{
				Kind:    KindInvocation,
				Message: fmt.Sprintf("panic handling %s request: %v", req.Kind, r),
				Trace:   string(debug.Stack()),
			})
		}
		resp.ID = req.ID
		if !resp.Success {
			span.SetStatus(codes.Error, resp.Error)
		}
	}()

	b.handlerLock.RLock()
	h, ok := b.handlers[req.Kind]
	b.handlerLock.RUnlock()
	if !ok {
		return b.failure(req, newError(KindRequest, "unknown request kind '%s'", req.Kind))
	}

	out, err := h(ctx, req)
	if err != nil {
		return b.failure(req, err)
	}
	out.Success = true
	out.Error = ""
	return out
}

func (b *Bridge) failure(req *Request, err error) *Response {
	b.logger.Debug("request failed", "id", req.ID, "kind", req.Kind, "error", err)
	return &Response{Error: err.Error()}
}

func required(field, value string) error {
	if value == "" {
		return newError(KindRequest, "missing required field '%s'", field)
	}
	return nil
}

func (b *Bridge) handleImport(ctx context.Context, req *Request) (*Response, error) {
	if err := required("module", req.Module); err != nil {
		return nil, err
	}
	autoInstall := req.AutoInstall == nil || *req.AutoInstall
	if _, err := b.modules.Import(ctx, req.Module, autoInstall); err != nil {
		return nil, err
	}
	return &Response{Module: req.Module}, nil
}

func (b *Bridge) handleInstall(ctx context.Context, req *Request) (*Response, error) {
	if err := required("package", req.Package); err != nil {
		return nil, err
	}
	if !b.installer.Install(ctx, req.Package) {
		return nil, newError(KindInstall, "failed to install package '%s'", req.Package)
	}
	return &Response{Package: req.Package}, nil
}

func (b *Bridge) handleCall(ctx context.Context, req *Request) (*Response, error) {
	if err := required("module", req.Module); err != nil {
		return nil, err
	}
	if err := required("function", req.Function); err != nil {
		return nil, err
	}
	mod, err := b.modules.Lookup(req.Module)
	if err != nil {
		return nil, err
	}
	v, err := b.engine.Call(ctx, mod, req.Function, req.Args)
	if err != nil {
		return nil, err
	}
	return resultResponse(v), nil
}

func (b *Bridge) handleGet(ctx context.Context, req *Request) (*Response, error) {
	if err := required("module", req.Module); err != nil {
		return nil, err
	}
	mod, err := b.modules.Lookup(req.Module)
	if err != nil {
		return nil, err
	}
	v, err := b.engine.GetAttribute(ctx, mod, req.Path)
	if err != nil {
		return nil, err
	}
	return resultResponse(v), nil
}

func (b *Bridge) handleCreateInstance(ctx context.Context, req *Request) (*Response, error) {
	if err := required("module", req.Module); err != nil {
		return nil, err
	}
	if err := required("class", req.Class); err != nil {
		return nil, err
	}
	mod, err := b.modules.Lookup(req.Module)
	if err != nil {
		return nil, err
	}
	id, err := b.instances.Create(ctx, mod, req.Class, req.Args)
	if err != nil {
		return nil, err
	}
	return &Response{InstanceID: id}, nil
}

func (b *Bridge) handleCallMethod(ctx context.Context, req *Request) (*Response, error) {
	if err := required("instance_id", req.InstanceID); err != nil {
		return nil, err
	}
	if err := required("method", req.Method); err != nil {
		return nil, err
	}
	v, err := b.instances.CallMethod(ctx, req.InstanceID, req.Method, req.Args)
	if err != nil {
		return nil, err
	}
	return resultResponse(v), nil
}

func (b *Bridge) handleReleaseInstance(_ context.Context, req *Request) (*Response, error) {
	if err := required("instance_id", req.InstanceID); err != nil {
		return nil, err
	}
	if err := b.instances.Release(req.InstanceID); err != nil {
		return nil, err
	}
	return &Response{InstanceID: req.InstanceID}, nil
}

func (b *Bridge) handleModules(context.Context, *Request) (*Response, error) {
	return resultResponse(Encode(b.modules.Names())), nil
}
