// Package registry implements wsrpc.App: a thread-safe method registry
// whose handlers can be registered, replaced, and removed while
// invocations are in flight.
package registry

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/internal/message"
)

// Registry is the default wsrpc.App implementation.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]wsrpc.Handler
	logger   zerolog.Logger
}

// New constructs a Registry with the built-in "echo" method pre-installed.
// logger is used to report handler panics and registration events; the
// zero value is a valid no-op logger.
func New(logger zerolog.Logger) *Registry {
	r := &Registry{
		handlers: make(map[string]wsrpc.Handler),
		logger:   logger,
	}
	r.Register("echo", func(params json.RawMessage) (wsrpc.Packet, error) {
		return wsrpc.Packet{Response: params}, nil
	})
	return r
}

// Register installs or replaces the handler for method. Idempotent;
// an invocation already in progress with the previous handler runs to
// completion unaffected, because Dispatch captures its own reference
// before calling out.
func (r *Registry) Register(method string, handler wsrpc.Handler) {
	r.logger.Debug().Str("method", method).Msg("registering method")
	r.mu.Lock()
	r.handlers[method] = handler
	r.mu.Unlock()
}

// Unregister removes method. In-flight invocations are unaffected.
func (r *Registry) Unregister(method string) {
	r.logger.Debug().Str("method", method).Msg("unregistering method")
	r.mu.Lock()
	delete(r.handlers, method)
	r.mu.Unlock()
}

// Dispatch looks up method and invokes its handler outside the registry's
// lock, so a concurrent Register/Unregister can never block or race with
// an in-flight call: the read lock only protects the act of copying the
// handler value out of the map.
func (r *Registry) Dispatch(method string, params json.RawMessage) (pkt wsrpc.Packet, errStr error) {
	r.mu.RLock()
	handler, ok := r.handlers[method]
	r.mu.RUnlock()

	if !ok {
		return wsrpc.Packet{}, errString(message.Format(message.MethodUnavaiable, message.Quote(method)))
	}

	return r.invoke(method, handler, params)
}

// invoke runs handler, converting any panic into an Internal Error
// response and logging the cause.
func (r *Registry) invoke(method string, handler wsrpc.Handler, params json.RawMessage) (pkt wsrpc.Packet, errStr error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("method", method).Interface("panic", rec).Msg("uncaught panic in handler")
			pkt = wsrpc.Packet{}
			errStr = errString(message.Format(message.InternalError, message.Quote(method)))
		}
	}()

	p, err := handler(params)
	if err != nil {
		return wsrpc.Packet{}, err
	}
	return p, nil
}

// Snapshot builds a new Registry preloaded with a copy of r's current
// method table, for servers that let operators register methods once at
// startup and hand each freshly opened connection its own independent
// App seeded with that set (see internal/server).
func (r *Registry) Snapshot(logger zerolog.Logger) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &Registry{handlers: make(map[string]wsrpc.Handler, len(r.handlers)), logger: logger}
	for method, handler := range r.handlers {
		clone.handlers[method] = handler
	}
	return clone
}

// errString adapts a plain diagnostic string to the error interface the
// rest of the pipeline expects; its Error() value is surfaced verbatim on
// the wire, already fully formatted.
type errString string

func (e errString) Error() string { return string(e) }
