// Package jumpbridge exposes modules, functions, classes and live object
// instances of a dynamic runtime to a remote caller over a message channel.
//
// A caller sends one request at a time; each is answered with an envelope that
// is either successful, carrying a result, or failed, carrying an error text
// whose prefix names its kind ("LookupError: ...").
//
// # Runtimes
//
// Two kinds of modules can be bridged side by side:
//
// Native modules are capability tables built in Go. Every member is declared
// explicitly, there is no reflection over arbitrary Go types:
//
//	mod := jumpbridge.NewModule("geometry").
//		Const("unit", 1.0).
//		Func("area", func(ctx context.Context, args jumpbridge.Args) (any, error) {
//			w, err := args.Float(0)
//			if err != nil {
//				return nil, err
//			}
//			h, err := args.Float(1)
//			if err != nil {
//				return nil, err
//			}
//			return w * h, nil
//		})
//
// Lua modules are loaded with require into an embedded interpreter
// (see LuaLoader). Tables are walked by field name, functions are called with
// positional arguments and a table with a "new" function acts as a class.
//
// # Request kinds
//
//	import           {module, auto_install?}   -> {module}
//	install          {package}                 -> {package}
//	call             {module, function, args?} -> {result}
//	get              {module, path}            -> {result}
//	create_instance  {module, class, args?}    -> {instance_id}
//	call_method      {instance_id, method, args?} -> {result}
//	release_instance {instance_id}             -> {instance_id}
//	modules          {}                        -> {result: [names]}
//
// # Values
//
// Results are encoded into Value, a closed union of null, booleans, numbers,
// strings, lists, string-keyed maps and tagged values. Tagged values travel as
// maps with a "__type__" key: bytes, set, datetime, function, method, class,
// object and unknown. Encoding never fails; anything that cannot be described
// becomes an unknown value carrying its printed form.
//
// # Serving
//
// Server reads length-prefixed frames (4-byte big-endian size) from a
// Transport and decodes them with a Serializer: MessagePack by default, JSON,
// or a binary google.protobuf.Struct. Client is the matching caller:
//
//	client, err := jumpbridge.Dial(ctx, "unix", "/tmp/jumpbridge.sock", nil)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	if err := client.Import(ctx, "math", false); err != nil {
//		return err
//	}
//	pi, err := client.Get(ctx, "math", "pi")
//
// # Concurrency
//
// Each connection is one ordered request stream. Connections are served
// concurrently; the module and instance registries are lock-guarded and
// concurrent imports of one module share a single load. Asynchronous
// functions run on their own goroutine and are bounded by a timeout.
package jumpbridge
