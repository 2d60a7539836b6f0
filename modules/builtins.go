// Package modules bundles the native modules shipped with jumpbridge.
package modules

import (
	"time"

	"github.com/richinsley/jumpbridge"
	"github.com/richinsley/jumpbridge/modules/collectionsmod"
	"github.com/richinsley/jumpbridge/modules/mathmod"
	"github.com/richinsley/jumpbridge/modules/osmod"
	"github.com/richinsley/jumpbridge/modules/sqlitemod"
	"github.com/richinsley/jumpbridge/modules/textmod"
	"github.com/richinsley/jumpbridge/modules/timemod"
	"github.com/richinsley/jumpbridge/modules/uuidmod"
)

// Builtins returns a fresh copy of every bundled native module.
func Builtins() []*jumpbridge.NativeModule {
	return []*jumpbridge.NativeModule{
		mathmod.New(),
		textmod.New(),
		timemod.New(time.Now),
		uuidmod.New(),
		osmod.New(),
		collectionsmod.New(),
		sqlitemod.New(),
	}
}

// Loader serves the bundled native modules.
func Loader() *jumpbridge.NativeLoader {
	return jumpbridge.NewNativeLoader(Builtins()...)
}
