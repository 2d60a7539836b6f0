package jumpbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Func is the calling convention of every bridged callable.
type Func func(ctx context.Context, args Args) (any, error)

// Function describes a callable reachable through the bridge.
type Function struct {
	// Name is the attribute name the callable was found under.
	Name string

	// Module is the name of the owning module, if known.
	Module string

	// Async marks callables that run on their own goroutine with a timeout.
	Async bool

	// Bound marks methods bound to an instance.
	Bound bool

	// Fn runs the callable. It is nil for descriptors that only travel as values.
	Fn Func
}

func (f *Function) describe() Value {
	typ := TagFunction
	if f.Bound {
		typ = TagMethod
	}
	return Tag(Tagged{Type: typ, Name: f.Name, Module: f.Module, Async: f.Async})
}

func (f *Function) qualifiedName() string {
	if f.Module == "" {
		return f.Name
	}
	return f.Module + "." + f.Name
}

// Namespace is a value whose members can be looked up by name.
type Namespace interface {
	Attr(name string) (any, bool)
}

// Module is a loaded, named namespace.
type Module interface {
	Namespace
	Name() string
}

// Class constructs instances.
type Class interface {
	Name() string
	Module() string
	New(ctx context.Context, args Args) (Object, error)
}

// Object is a live instance whose methods can be called by name.
type Object interface {
	Class() Class
	Method(name string) (*Function, bool)
}

// Loader produces a module by name. Implementations return an error wrapping
// ErrModuleNotFound when they do not know the name.
type Loader interface {
	Load(ctx context.Context, name string) (Module, error)
}

// ErrModuleNotFound is wrapped by loaders that do not provide a module.
var ErrModuleNotFound = errors.New("module not found")

// NativeModule is a capability table: an explicit mapping from member names
// to functions, constants, classes and submodules. Members are declared once
// at construction and never change afterwards.
type NativeModule struct {
	name    string
	members map[string]any
}

// NewModule returns an empty module. Dotted names denote submodules ("os.path").
func NewModule(name string) *NativeModule {
	return &NativeModule{name: name, members: make(map[string]any)}
}

func (m *NativeModule) Name() string { return m.name }

func (m *NativeModule) Attr(name string) (any, bool) {
	v, ok := m.members[name]
	return v, ok
}

// Members returns the sorted member names.
func (m *NativeModule) Members() []string {
	names := make([]string, 0, len(m.members))
	for name := range m.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *NativeModule) String() string {
	return fmt.Sprintf("<module '%s'>", m.name)
}

// Func declares a synchronous function.
func (m *NativeModule) Func(name string, fn Func) *NativeModule {
	return m.set(name, &Function{Name: name, Module: m.name, Fn: fn})
}

// AsyncFunc declares a function that runs on its own goroutine.
func (m *NativeModule) AsyncFunc(name string, fn Func) *NativeModule {
	return m.set(name, &Function{Name: name, Module: m.name, Async: true, Fn: fn})
}

// Const declares a data member.
func (m *NativeModule) Const(name string, v any) *NativeModule {
	return m.set(name, v)
}

// Class declares a class. The class is re-homed under this module.
func (m *NativeModule) Class(c *NativeClass) *NativeModule {
	c.module = m.name
	return m.set(c.name, c)
}

// Submodule declares a nested module under the last segment of its name.
func (m *NativeModule) Submodule(sub *NativeModule) *NativeModule {
	name := sub.name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return m.set(name, sub)
}

func (m *NativeModule) set(name string, v any) *NativeModule {
	if _, exists := m.members[name]; exists {
		panic(fmt.Sprintf("module %s: duplicate member %q", m.name, name))
	}
	m.members[name] = v
	return m
}

// Method is the calling convention of a native instance method.
type Method func(ctx context.Context, self any, args Args) (any, error)

type methodSpec struct {
	fn    Method
	async bool
}

// NativeClass is a capability table for a constructible type.
type NativeClass struct {
	name      string
	module    string
	construct Func
	methods   map[string]methodSpec
}

// NewClass declares a class whose constructor returns the instance state.
func NewClass(name string, construct Func) *NativeClass {
	return &NativeClass{name: name, construct: construct, methods: make(map[string]methodSpec)}
}

func (c *NativeClass) Name() string   { return c.name }
func (c *NativeClass) Module() string { return c.module }

// Method declares a synchronous method.
func (c *NativeClass) Method(name string, fn Method) *NativeClass {
	return c.def(name, methodSpec{fn: fn})
}

// AsyncMethod declares a method that runs on its own goroutine.
func (c *NativeClass) AsyncMethod(name string, fn Method) *NativeClass {
	return c.def(name, methodSpec{fn: fn, async: true})
}

func (c *NativeClass) def(name string, spec methodSpec) *NativeClass {
	if _, exists := c.methods[name]; exists {
		panic(fmt.Sprintf("class %s: duplicate method %q", c.name, name))
	}
	c.methods[name] = spec
	return c
}

// New runs the constructor and wraps its result as an instance.
func (c *NativeClass) New(ctx context.Context, args Args) (Object, error) {
	self, err := c.construct(ctx, args)
	if err != nil {
		return nil, err
	}
	return &nativeObject{class: c, self: self}, nil
}

type nativeObject struct {
	class *NativeClass
	self  any
}

func (o *nativeObject) Class() Class { return o.class }

func (o *nativeObject) Method(name string) (*Function, bool) {
	spec, ok := o.class.methods[name]
	if !ok {
		return nil, false
	}
	self := o.self
	return &Function{
		Name:   name,
		Module: o.class.module,
		Async:  spec.async,
		Bound:  true,
		Fn: func(ctx context.Context, args Args) (any, error) {
			return spec.fn(ctx, self, args)
		},
	}, true
}

// Export exposes the instance state to the codec.
func (o *nativeObject) Export() any { return o.self }

func (o *nativeObject) Close() error {
	if c, ok := o.self.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NativeLoader serves registered native modules. Dotted names resolve
// through submodules of the registered top-level module.
type NativeLoader struct {
	mu      sync.RWMutex
	modules map[string]*NativeModule
}

func NewNativeLoader(mods ...*NativeModule) *NativeLoader {
	l := &NativeLoader{modules: make(map[string]*NativeModule)}
	for _, m := range mods {
		l.Register(m)
	}
	return l
}

// Register adds a module. It panics on a duplicate name.
func (l *NativeLoader) Register(m *NativeModule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.modules[m.name]; exists {
		panic(fmt.Sprintf("native module %q already registered", m.name))
	}
	l.modules[m.name] = m
}

func (l *NativeLoader) Load(_ context.Context, name string) (Module, error) {
	head, rest, _ := strings.Cut(name, ".")
	l.mu.RLock()
	m, ok := l.modules[head]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no module named '%s': %w", name, ErrModuleNotFound)
	}
	for rest != "" {
		var seg string
		seg, rest, _ = strings.Cut(rest, ".")
		sub, ok := m.members[seg].(*NativeModule)
		if !ok {
			return nil, fmt.Errorf("no module named '%s': %w", name, ErrModuleNotFound)
		}
		m = sub
	}
	return m, nil
}

// Names returns the registered top-level module names.
func (l *NativeLoader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainLoader tries each loader in order. A loader that reports
// ErrModuleNotFound passes the name on; any other failure stops the chain.
type ChainLoader []Loader

func (c ChainLoader) Load(ctx context.Context, name string) (Module, error) {
	for _, l := range c {
		m, err := l.Load(ctx, name)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrModuleNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no module named '%s': %w", name, ErrModuleNotFound)
}
