package jumpbridge

import (
	"context"
	"strings"
)

// Engine resolves dotted paths inside modules and calls what it finds.
type Engine struct {
	invoker *Invoker
}

func NewEngine(invoker *Invoker) *Engine {
	return &Engine{invoker: invoker}
}

// Resolve walks segments one attribute at a time from the module root.
// The first missing segment is reported together with the module name.
func (e *Engine) Resolve(mod Module, segments []string) (any, error) {
	var cur any = mod
	for _, seg := range segments {
		next, ok := attr(cur, seg)
		if !ok {
			return nil, lookupError(seg, mod.Name())
		}
		cur = next
	}
	return cur, nil
}

func attr(v any, name string) (any, bool) {
	switch x := v.(type) {
	case Namespace:
		return x.Attr(name)
	case map[string]any:
		val, ok := x[name]
		return val, ok
	case map[string]Value:
		val, ok := x[name]
		return val, ok
	}
	return nil, false
}

// GetAttribute resolves segments and encodes the value found. An empty path
// yields the module itself.
func (e *Engine) GetAttribute(_ context.Context, mod Module, segments []string) (Value, error) {
	v, err := e.Resolve(mod, segments)
	if err != nil {
		return Null, err
	}
	return Encode(v), nil
}

// Call resolves a dotted path such as "path.join" and calls the target with
// args. Functions are invoked; classes are instantiated and the new object
// is returned encoded.
func (e *Engine) Call(ctx context.Context, mod Module, dottedPath string, args Args) (Value, error) {
	segments := strings.Split(dottedPath, ".")
	target, err := e.Resolve(mod, segments)
	if err != nil {
		return Null, err
	}

	var fn *Function
	switch t := target.(type) {
	case *Function:
		fn = t
	case Class:
		fn = constructor(t)
	default:
		return Null, newError(KindInvocation, "'%s' in module '%s' is not callable", dottedPath, mod.Name())
	}

	res, err := e.invoker.Invoke(ctx, fn, args)
	if err != nil {
		return Null, err
	}
	return Encode(res), nil
}
