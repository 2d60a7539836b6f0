package jumpbridge

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a bridge failure. The kind is rendered as a prefix of
// the error text so callers on the other side of the wire can pattern-match it.
type ErrorKind string

const (
	// KindLookup is an unknown module, class, method or attribute.
	KindLookup ErrorKind = "LookupError"

	// KindNotFound is an unknown instance handle.
	KindNotFound ErrorKind = "NotFoundError"

	// KindImport is a module that could not be loaded, even after auto-install.
	KindImport ErrorKind = "ImportError"

	// KindInvocation is a failure raised while running a callable or constructor.
	KindInvocation ErrorKind = "InvocationError"

	// KindInstall is an explicit install request that did not succeed.
	KindInstall ErrorKind = "InstallError"

	// KindRequest is a malformed or unroutable request.
	KindRequest ErrorKind = "RequestError"
)

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrLookup     = &Error{Kind: KindLookup}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrImport     = &Error{Kind: KindImport}
	ErrInvocation = &Error{Kind: KindInvocation}
	ErrInstall    = &Error{Kind: KindInstall}
	ErrRequest    = &Error{Kind: KindRequest}
)

// Error is the failure type returned by every bridge operation.
// It carries a human-readable message and, for invocation failures, an
// optional diagnostic trace that is appended to the rendered text.
type Error struct {
	// Kind is the taxonomy bucket of the failure.
	Kind ErrorKind

	// Message describes the failure.
	Message string

	// Trace is a best-effort diagnostic trace (goroutine stack, Lua traceback).
	Trace string

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// Error renders "Kind: message" followed by the trace on a new line when present.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Trace != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(e.Trace, "\n"))
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// lookupError reports the first missing segment of a path and the module that owns it.
func lookupError(segment, module string) *Error {
	return newError(KindLookup, "attribute '%s' not found in module '%s'", segment, module)
}
