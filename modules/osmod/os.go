// Package osmod provides the "os" module and its "os.path" submodule.
package osmod

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/richinsley/jumpbridge"
)

func New() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("os").
		Const("name", runtime.GOOS).
		Const("sep", string(filepath.Separator)).
		Func("getenv", getenv).
		Func("getcwd", func(context.Context, jumpbridge.Args) (any, error) {
			return os.Getwd()
		}).
		Func("listdir", listdir).
		Submodule(pathModule())
}

func pathModule() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("os.path").
		Func("join", join).
		Func("basename", pathFunc(filepath.Base)).
		Func("dirname", pathFunc(filepath.Dir)).
		Func("abspath", func(_ context.Context, args jumpbridge.Args) (any, error) {
			p, err := args.Text(0)
			if err != nil {
				return nil, err
			}
			return filepath.Abs(p)
		}).
		Func("splitext", splitext).
		Func("exists", exists)
}

// getenv(name, default=nil)
func getenv(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 2); err != nil {
		return nil, err
	}
	name, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return args.Get(1), nil
}

func listdir(_ context.Context, args jumpbridge.Args) (any, error) {
	dir, err := args.OptText(0, ".")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func join(_ context.Context, args jumpbridge.Args) (any, error) {
	parts := make([]string, len(args))
	for i := range args {
		s, err := args.Text(i)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return filepath.Join(parts...), nil
}

func pathFunc(f func(string) string) jumpbridge.Func {
	return func(_ context.Context, args jumpbridge.Args) (any, error) {
		if err := args.Arity(1, 1); err != nil {
			return nil, err
		}
		p, err := args.Text(0)
		if err != nil {
			return nil, err
		}
		return f(p), nil
	}
}

// splitext returns [root, ext] with ext including the leading dot.
func splitext(_ context.Context, args jumpbridge.Args) (any, error) {
	p, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(p)
	if ext == filepath.Base(p) {
		ext = "" // dotfiles such as ".bashrc" have no extension
	}
	return []string{strings.TrimSuffix(p, ext), ext}, nil
}

func exists(_ context.Context, args jumpbridge.Args) (any, error) {
	p, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return nil, err
}
