// Package server implements the WebSocket JSON-RPC runtime: accepting
// connections, dispatching each inbound request through a per-connection
// worker pool, and shutting the process down once every socket has been
// idle past its grace period.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/internal/logging"
	"github.com/wsrpc/wsrpc/internal/pipeline"
	"github.com/wsrpc/wsrpc/internal/registry"
	"github.com/wsrpc/wsrpc/internal/scheduler"
	"github.com/wsrpc/wsrpc/internal/workerpool"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080" or "127.0.0.1:0". A zero
	// port binds an ephemeral one, useful in tests.
	Addr string

	// IdleTimeout is how long the server waits with zero open
	// connections before shutting itself down. Zero disables the
	// idle-shutdown behavior entirely.
	IdleTimeout time.Duration

	// AppFactory builds the wsrpc.App handed to each newly accepted
	// connection. If nil, the Server maintains its own template
	// Registry (mutate it via Register/Unregister) and hands every
	// connection an independent snapshot of it.
	AppFactory wsrpc.AppFactory

	Logger zerolog.Logger
}

// Server accepts WebSocket connections on a single upgrade route and
// runs the request→response pipeline against each inbound TEXT frame.
type Server struct {
	addr        string
	idleTimeout time.Duration
	logger      zerolog.Logger
	upgrader    websocket.Upgrader

	template   *registry.Registry // nil when Options.AppFactory was supplied
	appFactory wsrpc.AppFactory

	connCount    atomic.Int64
	shutdownTask *scheduler.ScheduledTask

	mu         sync.Mutex
	started    bool
	httpServer *http.Server
	listener   net.Listener
}

// New constructs a Server. It does not bind a socket until Serve runs.
func New(opts Options) *Server {
	s := &Server{
		addr:        opts.Addr,
		idleTimeout: opts.IdleTimeout,
		logger:      opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	if opts.AppFactory != nil {
		s.appFactory = opts.AppFactory
	} else {
		s.template = registry.New(opts.Logger)
		s.appFactory = func() wsrpc.App { return s.template.Snapshot(s.logger) }
	}

	s.shutdownTask = scheduler.New("idle-shutdown", s.onIdleTimeout, s.logger)
	return s
}

// Register installs method on the template App every subsequent
// connection is seeded from. It has no effect if the Server was built
// with a custom AppFactory (that factory owns its own method table).
func (s *Server) Register(method string, handler wsrpc.Handler) {
	if s.template != nil {
		s.template.Register(method, handler)
	}
}

// Unregister removes method from the template App. See Register.
func (s *Server) Unregister(method string) {
	if s.template != nil {
		s.template.Unregister(method)
	}
}

// Addr returns the address the server is listening on. Valid only after
// Serve has bound its listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve binds the listen address and blocks, serving connections until
// ctx is canceled or the idle-shutdown timer fires. It is single-shot:
// a second call returns an error without doing anything.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server: Serve already called")
	}
	s.started = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		logging.Critical(&s.logger).Err(err).Str("addr", s.addr).Msg("failed to bind listener")
		return fmt.Errorf("wsrpc: listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpServer = &http.Server{Handler: mux}
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	if s.idleTimeout > 0 {
		s.shutdownTask.Schedule(s.idleTimeout)
	}

	served := make(chan error, 1)
	go func() { served <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Stop shuts the server down from outside the Serve goroutine, e.g. from
// a signal handler. It is equivalent to canceling the context Serve was
// given.
func (s *Server) Stop(ctx context.Context) error {
	return s.shutdownWith(ctx)
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.shutdownWith(ctx)
}

func (s *Server) shutdownWith(ctx context.Context) error {
	s.shutdownTask.Cancel()
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// onIdleTimeout runs on the scheduler's own goroutine once the server
// has gone idleTimeout without any open connection.
func (s *Server) onIdleTimeout() {
	s.logger.Info().Msg("idle timeout elapsed with no open connections; shutting down")
	go s.shutdown()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	s.shutdownTask.Cancel()
	s.connCount.Add(1)

	app := s.appFactory()
	pool := workerpool.New(workerpool.DefaultSize())
	c := newConn(ws, r.RemoteAddr, app, pool, s.logger)

	c.logger.Info().Str("remote", c.remoteAddr).Msg("connection opened")

	go c.writeLoop()
	s.readLoop(c)
}

func (s *Server) readLoop(c *conn) {
	defer s.closeConn(c)

	c.ws.SetReadLimit(maxMessageBytes)
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		c.logger.Trace().Msg("pong")
		c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	c.ws.SetPingHandler(func(appData string) error {
		c.logger.Trace().Msg("ping")
		c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return c.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		opCode, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("connection read error")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(readDeadline))

		switch opCode {
		case websocket.TextMessage:
			s.dispatch(c, payload)
		case websocket.BinaryMessage:
			c.logger.Error().Msg("unexpected binary frame from client; discarding")
		default:
			logging.Critical(&c.logger).Int("opcode", opCode).Msg("unexpected opcode")
		}
	}
}

// dispatch hands one request off to the connection's worker pool. The
// payload is copied because gorilla may reuse the buffer ReadMessage
// returned once the loop goes around again.
func (s *Server) dispatch(c *conn, payload []byte) {
	message := append([]byte(nil), payload...)
	c.pool.Submit(func() {
		if c.closed.Load() {
			return
		}
		c.deliver(pipeline.Process(c.app, message, s.logger))
	})
}

// closeConn runs the Purge, Wait, Close shutdown sequence the worker
// pool contract requires before the socket and its App are torn down,
// then reschedules the idle-shutdown timer if this was the last open
// connection.
func (s *Server) closeConn(c *conn) {
	c.pool.Purge()
	c.pool.Wait()
	c.pool.Close()
	c.close()

	if closer, ok := c.app.(io.Closer); ok {
		closer.Close()
	}

	c.logger.Info().Msg("connection closed")

	if remaining := s.connCount.Add(-1); remaining == 0 && s.idleTimeout > 0 {
		s.logger.Debug().Dur("timeout", s.idleTimeout).Msg("arming idle-shutdown timer")
		s.shutdownTask.Schedule(s.idleTimeout)
	}
}
