package wsrpc

import "encoding/json"

// Packet is the result of dispatching one request: the raw JSON a handler
// produced plus any binary blobs that should travel out-of-band with it.
//
// Attachments are opaque to the server; it neither inspects nor transforms
// them, it only frames and sends them (see Attachments in the package
// documentation).
type Packet struct {
	Response    json.RawMessage
	Attachments [][]byte
}

// Handler processes a raw, unparsed params fragment and returns either a
// Packet or a diagnostic string surfaced verbatim in the response's error
// field. Handlers must not re-parse params themselves if they intend to
// pass it through unchanged: Params is preserved byte-for-byte by the
// caller, never re-marshalled.
type Handler func(params json.RawMessage) (Packet, error)

// App is a thread-safe, mutable method registry. A concrete App may be
// constructed directly (see the registry package) or supplied as a custom
// variant via an AppFactory that pre-registers additional methods in its
// own constructor.
type App interface {
	// Dispatch looks up method and invokes its handler with params. A
	// lookup miss or a handler failure is reported as an error string
	// already formatted per the wire error grammar; it is never a Go
	// error type intended for programmatic inspection.
	Dispatch(method string, params json.RawMessage) (Packet, error)

	// Register installs or replaces the handler for method. An
	// in-flight Dispatch using the previous handler is unaffected.
	Register(method string, handler Handler)

	// Unregister removes method. In-flight invocations complete
	// unaffected.
	Unregister(method string)
}

// AppFactory constructs a fresh App for a newly opened connection. The
// Server calls it once per accepted socket so that per-connection state
// never leaks across connections.
type AppFactory func() App
