// Package textmod provides the "strings" module.
package textmod

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/richinsley/jumpbridge"
)

func New() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("strings").
		Func("upper", mapping(strings.ToUpper)).
		Func("lower", mapping(strings.ToLower)).
		Func("strip", mapping(strings.TrimSpace)).
		Func("title", title).
		Func("split", split).
		Func("join", join).
		Func("replace", replace).
		Func("encode", encode).
		Func("decode", decode).
		Func("format_number", formatNumber)
}

func mapping(f func(string) string) jumpbridge.Func {
	return func(_ context.Context, args jumpbridge.Args) (any, error) {
		if err := args.Arity(1, 1); err != nil {
			return nil, err
		}
		s, err := args.Text(0)
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

// tag parses an optional BCP 47 language argument.
func tag(args jumpbridge.Args, i int) (language.Tag, error) {
	name, err := args.OptText(i, "und")
	if err != nil {
		return language.Und, err
	}
	return language.Parse(name)
}

// title(s, lang="und") title-cases words using the rules of lang.
func title(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 2); err != nil {
		return nil, err
	}
	s, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	lang, err := tag(args, 1)
	if err != nil {
		return nil, err
	}
	return cases.Title(lang).String(s), nil
}

// split(s, sep=nil) splits on sep, or on runs of white space when sep is nil.
func split(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 2); err != nil {
		return nil, err
	}
	s, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	if args.Get(1) == nil {
		return strings.Fields(s), nil
	}
	sep, err := args.Text(1)
	if err != nil {
		return nil, err
	}
	return strings.Split(s, sep), nil
}

// join(sep, items)
func join(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(2, 2); err != nil {
		return nil, err
	}
	sep, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	items, err := args.List(1)
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	for i := range items {
		if parts[i], err = jumpbridge.Args(items).Text(i); err != nil {
			return nil, err
		}
	}
	return strings.Join(parts, sep), nil
}

// replace(s, old, new, count=-1)
func replace(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(3, 4); err != nil {
		return nil, err
	}
	s, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	old, err := args.Text(1)
	if err != nil {
		return nil, err
	}
	repl, err := args.Text(2)
	if err != nil {
		return nil, err
	}
	n, err := args.OptInt(3, -1)
	if err != nil {
		return nil, err
	}
	return strings.Replace(s, old, repl, int(n)), nil
}

func encode(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 1); err != nil {
		return nil, err
	}
	s, err := args.Text(0)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func decode(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 1); err != nil {
		return nil, err
	}
	b, err := args.Bytes(0)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, errors.New("bytes are not valid UTF-8")
	}
	return string(b), nil
}

// format_number(n, lang="en") renders n with the digit grouping of lang.
func formatNumber(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 2); err != nil {
		return nil, err
	}
	if args.Get(1) == nil {
		args = append(args[:1:1], "en")
	}
	lang, err := tag(args, 1)
	if err != nil {
		return nil, err
	}
	p := message.NewPrinter(lang)
	if n, err := args.Int(0); err == nil {
		return p.Sprintf("%d", n), nil
	}
	f, err := args.Float(0)
	if err != nil {
		return nil, err
	}
	return p.Sprintf("%v", f), nil
}
