package jumpbridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
)

// InstanceRegistry holds live objects under generated identifiers.
type InstanceRegistry struct {
	mu        sync.RWMutex
	instances map[string]Object

	invoker *Invoker
	newID   func() (string, error)
}

func NewInstanceRegistry(invoker *Invoker) *InstanceRegistry {
	return &InstanceRegistry{
		instances: make(map[string]Object),
		invoker:   invoker,
		newID:     newInstanceID,
	}
}

func newInstanceID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create instantiates the named class of mod with args and stores the result.
func (r *InstanceRegistry) Create(ctx context.Context, mod Module, className string, args Args) (string, error) {
	v, ok := mod.Attr(className)
	if !ok {
		return "", newError(KindLookup, "class '%s' not found in module '%s'", className, mod.Name())
	}
	class, ok := v.(Class)
	if !ok {
		return "", newError(KindLookup, "'%s' in module '%s' is not a class", className, mod.Name())
	}

	res, err := r.invoker.Invoke(ctx, constructor(class), args)
	if err != nil {
		return "", err
	}
	obj := res.(Object)

	id, err := r.newID()
	if err != nil {
		closeObject(obj)
		return "", wrapError(KindInvocation, err, "cannot allocate instance id: %v", err)
	}
	r.mu.Lock()
	r.instances[id] = obj
	r.mu.Unlock()
	return id, nil
}

// constructor presents class instantiation as an ordinary callable so it
// shares the invoker's tracing and panic recovery.
func constructor(class Class) *Function {
	return &Function{
		Name:   class.Name(),
		Module: class.Module(),
		Fn: func(ctx context.Context, args Args) (any, error) {
			return class.New(ctx, args)
		},
	}
}

// Get returns the live object stored under id.
func (r *InstanceRegistry) Get(id string) (Object, error) {
	r.mu.RLock()
	obj, ok := r.instances[id]
	r.mu.RUnlock()
	if !ok {
		return nil, newError(KindNotFound, "instance '%s' not found", id)
	}
	return obj, nil
}

// CallMethod invokes a method of the instance id and encodes its result.
func (r *InstanceRegistry) CallMethod(ctx context.Context, id, method string, args Args) (Value, error) {
	obj, err := r.Get(id)
	if err != nil {
		return Null, err
	}
	fn, ok := obj.Method(method)
	if !ok {
		return Null, newError(KindLookup, "method '%s' not found on instance of '%s'", method, obj.Class().Name())
	}
	res, err := r.invoker.Invoke(ctx, fn, args)
	if err != nil {
		return Null, err
	}
	return Encode(res), nil
}

// Release removes the instance and closes it if it holds resources. The
// handle is gone even when closing fails.
func (r *InstanceRegistry) Release(id string) error {
	r.mu.Lock()
	obj, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()
	if !ok {
		return newError(KindNotFound, "instance '%s' not found", id)
	}
	if err := closeObject(obj); err != nil {
		return wrapError(KindInvocation, err, "error closing instance '%s': %v", id, err)
	}
	return nil
}

// Len reports the number of live instances.
func (r *InstanceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Close releases every instance.
func (r *InstanceRegistry) Close() error {
	r.mu.Lock()
	instances := r.instances
	r.instances = make(map[string]Object)
	r.mu.Unlock()

	var errs []error
	for _, obj := range instances {
		if err := closeObject(obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeObject(obj Object) error {
	if c, ok := obj.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
