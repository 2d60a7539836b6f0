// Package collectionsmod provides the "collections" module.
package collectionsmod

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/richinsley/jumpbridge"
)

func New() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("collections").
		Func("unique", unique).
		Func("counter", counter).
		Class(stackClass())
}

// unique returns the distinct elements of a list as a set.
func unique(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 1); err != nil {
		return nil, err
	}
	items, err := args.List(0)
	if err != nil {
		return nil, err
	}
	set := jumpbridge.NewSet()
	for i, item := range items {
		if !set.Add(item) {
			return nil, fmt.Errorf("element %d is not hashable: %T", i, item)
		}
	}
	return set, nil
}

// counter maps each element's display form to its number of occurrences.
func counter(_ context.Context, args jumpbridge.Args) (any, error) {
	if err := args.Arity(1, 1); err != nil {
		return nil, err
	}
	items, err := args.List(0)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[fmt.Sprint(item)]++
	}
	return counts, nil
}

// Stack is a LIFO container. Items is visible to callers that fetch the
// instance's fields.
type Stack struct {
	mu    sync.Mutex
	Items []any
}

var errEmpty = errors.New("pop from empty stack")

func stackClass() *jumpbridge.NativeClass {
	return jumpbridge.NewClass("Stack", func(_ context.Context, args jumpbridge.Args) (any, error) {
		s := &Stack{Items: []any{}}
		if args.Get(0) != nil {
			initial, err := args.List(0)
			if err != nil {
				return nil, err
			}
			s.Items = append(s.Items, initial...)
		}
		return s, nil
	}).
		Method("push", func(_ context.Context, self any, args jumpbridge.Args) (any, error) {
			s := self.(*Stack)
			s.mu.Lock()
			defer s.mu.Unlock()
			s.Items = append(s.Items, args...)
			return len(s.Items), nil
		}).
		Method("pop", func(_ context.Context, self any, _ jumpbridge.Args) (any, error) {
			s := self.(*Stack)
			s.mu.Lock()
			defer s.mu.Unlock()
			if len(s.Items) == 0 {
				return nil, errEmpty
			}
			top := s.Items[len(s.Items)-1]
			s.Items = s.Items[:len(s.Items)-1]
			return top, nil
		}).
		Method("peek", func(_ context.Context, self any, _ jumpbridge.Args) (any, error) {
			s := self.(*Stack)
			s.mu.Lock()
			defer s.mu.Unlock()
			if len(s.Items) == 0 {
				return nil, nil
			}
			return s.Items[len(s.Items)-1], nil
		}).
		Method("size", func(_ context.Context, self any, _ jumpbridge.Args) (any, error) {
			s := self.(*Stack)
			s.mu.Lock()
			defer s.mu.Unlock()
			return len(s.Items), nil
		}).
		Method("snapshot", func(_ context.Context, self any, _ jumpbridge.Args) (any, error) {
			return self, nil
		})
}
