// Package ws is the embeddable constructor surface for the wsrpc server
// runtime: a thin, documented wrapper that exposes internal/server's
// implementation as a small, stable public API.
package ws

import (
	"time"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/internal/logging"
	"github.com/wsrpc/wsrpc/internal/server"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080" or "127.0.0.1:0".
	Addr string

	// IdleTimeout is how long the server keeps running with zero open
	// connections before shutting itself down. Zero disables
	// idle-shutdown.
	IdleTimeout time.Duration

	// AppFactory, if set, builds the wsrpc.App for every newly accepted
	// connection. Leave nil to use Register/Unregister on the returned
	// Server instead; each connection then gets an independent
	// snapshot of whatever has been registered so far.
	AppFactory wsrpc.AppFactory

	// LogLevel is one of trace, debug, info, warn, err, critical, off.
	// Defaults to "info".
	LogLevel string
}

// DefaultOptions returns Options with a five-minute idle timeout and
// info-level logging, listening on addr.
func DefaultOptions(addr string) Options {
	return Options{Addr: addr, IdleTimeout: 5 * time.Minute, LogLevel: "info"}
}

// Server is a running (or not-yet-started) wsrpc WebSocket endpoint.
type Server struct {
	*server.Server
}

// New constructs a Server from opts. It does not bind a listener or
// start serving; call Serve for that.
func New(opts Options) (*Server, error) {
	level := opts.LogLevel
	if level == "" {
		level = "info"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	s := server.New(server.Options{
		Addr:        opts.Addr,
		IdleTimeout: opts.IdleTimeout,
		AppFactory:  opts.AppFactory,
		Logger:      logger,
	})
	return &Server{s}, nil
}
