// Package uuidmod provides the "uuid" module.
package uuidmod

import (
	"context"

	"github.com/google/uuid"

	"github.com/richinsley/jumpbridge"
)

func New() *jumpbridge.NativeModule {
	return jumpbridge.NewModule("uuid").
		Const("NIL", uuid.Nil.String()).
		Func("uuid4", func(context.Context, jumpbridge.Args) (any, error) {
			return uuid.NewString(), nil
		}).
		Func("uuid7", func(context.Context, jumpbridge.Args) (any, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			return id.String(), nil
		}).
		Func("parse", func(_ context.Context, args jumpbridge.Args) (any, error) {
			s, err := args.Text(0)
			if err != nil {
				return nil, err
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"hex":     id.String(),
				"version": int(id.Version()),
				"variant": id.Variant().String(),
			}, nil
		})
}
