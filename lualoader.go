package jumpbridge

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
)

//go:embed lua/*.lua
var bundledLua embed.FS

const (
	luaModuleKey   = "jumpbridge.module."
	luaInstanceKey = "jumpbridge.instance."
)

// LuaOptions configure a LuaLoader.
type LuaOptions struct {
	// Paths are directories searched for name.lua and name/init.lua.
	Paths []string

	// RocksTree is a luarocks tree whose share/lua/<version> directory is searched.
	RocksTree string

	// Bundled holds modules available without touching the filesystem, as
	// lua/<name>.lua entries. Nil means the modules embedded in this package.
	Bundled fs.FS

	Logger *slog.Logger
}

// LuaLoader loads Lua modules with require into a single interpreter.
// The interpreter is not safe for concurrent use, so every access to it,
// including attribute lookups and calls on the values it hands out, goes
// through one mutex.
type LuaLoader struct {
	mu      sync.Mutex
	state   *lua.State
	version Version
	nextID  int
	logger  *slog.Logger
}

func NewLuaLoader(opts LuaOptions) (*LuaLoader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	state := lua.NewState()
	lua.OpenLibraries(state)

	state.Global("_VERSION")
	versionText, _ := state.ToString(-1)
	state.Pop(1)
	version, err := ParseLuaVersion(versionText)
	if err != nil {
		return nil, err
	}

	l := &LuaLoader{state: state, version: version, logger: logger}
	l.extendPath(opts.Paths, opts.RocksTree)

	bundled := opts.Bundled
	if bundled == nil {
		bundled = bundledLua
	}
	if err := l.preload(bundled); err != nil {
		return nil, err
	}
	return l, nil
}

// Version is the language version of the interpreter.
func (l *LuaLoader) Version() Version { return l.version }

// extendPath prepends the configured directories to package.path.
func (l *LuaLoader) extendPath(dirs []string, tree string) {
	var patterns []string
	if tree != "" {
		dirs = append(dirs, filepath.Join(tree, "share", "lua", l.version.MinorString()))
	}
	for _, dir := range dirs {
		patterns = append(patterns,
			filepath.Join(dir, "?.lua"),
			filepath.Join(dir, "?", "init.lua"))
	}
	if len(patterns) == 0 {
		return
	}

	st := l.state
	st.Global("package")
	st.Field(-1, "path")
	current, _ := st.ToString(-1)
	st.Pop(1)
	if current != "" {
		patterns = append(patterns, current)
	}
	st.PushString(strings.Join(patterns, ";"))
	st.SetField(-2, "path")
	st.Pop(1)
}

// preload registers every lua/<name>.lua file of fsys in package.preload so
// require finds it before searching the filesystem.
func (l *LuaLoader) preload(fsys fs.FS) error {
	files, err := fs.Glob(fsys, "lua/*.lua")
	if err != nil {
		return err
	}
	st := l.state
	st.Global("package")
	st.Field(-1, "preload")
	defer st.Pop(2)
	for _, file := range files {
		src, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("read bundled lua module %s: %w", file, err)
		}
		name := strings.TrimSuffix(path.Base(file), ".lua")
		chunk, chunkName := string(src), "@"+file
		st.PushGoFunction(func(state *lua.State) int {
			if err := lua.LoadBuffer(state, chunk, chunkName, ""); err != nil {
				lua.Errorf(state, "%s", err.Error())
			}
			state.Call(0, 1)
			return 1
		})
		st.SetField(-2, name)
		l.logger.Debug("bundled lua module registered", "module", name)
	}
	return nil
}

// Load requires the named module and keeps its table alive in the registry.
func (l *LuaLoader) Load(_ context.Context, name string) (Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state
	top := st.Top()
	defer st.SetTop(top)

	st.Global("require")
	st.PushString(name)
	if err := l.pcall(1, 1); err != nil {
		if strings.Contains(err.Message, fmt.Sprintf("module '%s' not found", name)) {
			return nil, fmt.Errorf("no module named '%s': %w", name, ErrModuleNotFound)
		}
		return nil, fmt.Errorf("lua module '%s': %s", name, err.Message)
	}
	if t := st.TypeOf(-1); t != lua.TypeTable && t != lua.TypeUserData {
		return nil, fmt.Errorf("lua module '%s' did not return a table", name)
	}
	key := luaModuleKey + name
	st.SetField(lua.RegistryIndex, key)
	return &luaModule{luaValue: luaValue{rt: l, root: key, module: name}}, nil
}

// pcall runs the function below nargs arguments in protected mode with a
// traceback handler. On failure the stack holds only what was below the
// function.
func (l *LuaLoader) pcall(nargs, nresults int) *Error {
	st := l.state
	fnIndex := st.Top() - nargs
	st.PushGoFunction(luaTraceback)
	st.Insert(fnIndex)
	err := st.ProtectedCall(nargs, nresults, fnIndex)
	st.Remove(fnIndex)
	if err == nil {
		return nil
	}

	text := err.Error()
	if s, ok := st.ToString(-1); ok {
		text = s
	}
	st.Pop(1)
	msg, trace, _ := strings.Cut(text, "\nstack traceback:")
	e := &Error{Kind: KindInvocation, Message: msg, Cause: err}
	if trace != "" {
		e.Trace = "stack traceback:" + trace
	}
	return e
}

func luaTraceback(state *lua.State) int {
	msg, ok := state.ToString(1)
	if !ok {
		msg = fmt.Sprintf("(error object is a %s value)", lua.TypeNameOf(state, 1))
	}
	lua.Traceback(state, state, msg, 1)
	return 1
}

// push places the value at root.path on the stack. It reports false, with
// nothing left pushed beyond intermediates, if some step is not indexable.
func (l *LuaLoader) push(root string, path []string) bool {
	st := l.state
	st.Field(lua.RegistryIndex, root)
	for _, seg := range path {
		if !indexable(st, -1) {
			return false
		}
		st.Field(-1, seg)
	}
	return true
}

func indexable(st *lua.State, index int) bool {
	switch st.TypeOf(index) {
	case lua.TypeTable, lua.TypeUserData:
		return true
	}
	return false
}

// call invokes root.path(args...), or root.path:method(args...) when
// method is set, and converts the results. Several results become a list.
func (l *LuaLoader) call(root string, path []string, method string, args Args) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state
	top := st.Top()
	defer st.SetTop(top)

	if !l.push(root, path) {
		return nil, newError(KindInvocation, "lua value is no longer reachable")
	}
	nargs := len(args)
	if method != "" {
		self := st.Top()
		st.Field(self, method)
		st.PushValue(self)
		nargs++
	}
	fnIndex := st.Top()
	if nargs > len(args) {
		fnIndex--
	}
	for _, arg := range args {
		pushGo(st, arg)
	}
	if err := l.pcall(nargs, lua.MultipleReturns); err != nil {
		return nil, err
	}

	n := st.Top() - fnIndex + 1
	switch n {
	case 0:
		return nil, nil
	case 1:
		return toGo(st, -1, "", l.moduleOf(root)), nil
	}
	results := make([]any, n)
	for i := range results {
		results[i] = toGo(st, fnIndex+i, "", l.moduleOf(root))
	}
	return results, nil
}

func (l *LuaLoader) moduleOf(root string) string {
	return strings.TrimPrefix(root, luaModuleKey)
}

// luaValue refers to a Lua value by registry root and field path. The path is
// resolved again on every access.
type luaValue struct {
	rt     *LuaLoader
	root   string
	path   []string
	module string
}

func (v *luaValue) child(name string) luaValue {
	p := make([]string, len(v.path)+1)
	copy(p, v.path)
	p[len(v.path)] = name
	return luaValue{rt: v.rt, root: v.root, path: p, module: v.module}
}

func (v *luaValue) Attr(name string) (any, bool) {
	rt := v.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := rt.state
	top := st.Top()
	defer st.SetTop(top)

	if !rt.push(v.root, v.path) || !indexable(st, -1) {
		return nil, false
	}
	st.Field(-1, name)
	child := v.child(name)

	switch st.TypeOf(-1) {
	case lua.TypeNil:
		return nil, false
	case lua.TypeFunction:
		owner := child
		return &Function{
			Name:   name,
			Module: v.module,
			Fn: func(_ context.Context, args Args) (any, error) {
				return rt.call(owner.root, owner.path, "", args)
			},
		}, true
	case lua.TypeTable:
		if isLuaClass(st, -1) {
			return &luaClass{luaValue: child, name: name}, true
		}
		return &child, true
	case lua.TypeUserData:
		return &child, true
	}
	return toGo(st, -1, name, v.module), true
}

// Export converts the referenced value to plain data.
func (v *luaValue) Export() any {
	rt := v.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := rt.state
	top := st.Top()
	defer st.SetTop(top)

	if !rt.push(v.root, v.path) {
		return nil
	}
	name := ""
	if len(v.path) > 0 {
		name = v.path[len(v.path)-1]
	}
	return toGo(st, -1, name, v.module)
}

func isLuaClass(st *lua.State, index int) bool {
	st.Field(index, "new")
	defer st.Pop(1)
	return st.TypeOf(-1) == lua.TypeFunction
}

type luaModule struct {
	luaValue
}

func (m *luaModule) Name() string { return m.module }

// luaClass is a table with a constructor function named new, called as
// Class.new(args...).
type luaClass struct {
	luaValue
	name string
}

func (c *luaClass) Name() string   { return c.name }
func (c *luaClass) Module() string { return c.module }

func (c *luaClass) New(_ context.Context, args Args) (Object, error) {
	rt := c.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := rt.state
	top := st.Top()
	defer st.SetTop(top)

	if !rt.push(c.root, c.path) {
		return nil, newError(KindInvocation, "class '%s' is no longer reachable", c.name)
	}
	st.Field(-1, "new")
	for _, arg := range args {
		pushGo(st, arg)
	}
	if err := rt.pcall(len(args), 1); err != nil {
		return nil, err
	}
	if !indexable(st, -1) {
		return nil, newError(KindInvocation, "%s.new returned a %s, not an instance",
			c.name, lua.TypeNameOf(st, -1))
	}

	rt.nextID++
	key := fmt.Sprintf("%s%d", luaInstanceKey, rt.nextID)
	st.SetField(lua.RegistryIndex, key)
	return &luaObject{luaValue: luaValue{rt: rt, root: key, module: c.module}, class: c}, nil
}

// luaObject is an instance anchored in the registry until it is closed.
type luaObject struct {
	luaValue
	class *luaClass
}

func (o *luaObject) Class() Class { return o.class }

func (o *luaObject) Method(name string) (*Function, bool) {
	rt := o.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := rt.state
	top := st.Top()
	defer st.SetTop(top)

	if !rt.push(o.root, nil) || !indexable(st, -1) {
		return nil, false
	}
	st.Field(-1, name)
	if st.TypeOf(-1) != lua.TypeFunction {
		return nil, false
	}
	root := o.root
	return &Function{
		Name:   name,
		Module: o.module,
		Bound:  true,
		Fn: func(_ context.Context, args Args) (any, error) {
			return rt.call(root, nil, name, args)
		},
	}, true
}

// Close drops the registry anchor so the instance can be collected.
func (o *luaObject) Close() error {
	rt := o.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.state.PushNil()
	rt.state.SetField(lua.RegistryIndex, o.root)
	return nil
}
