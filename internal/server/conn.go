package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/internal/workerpool"
)

const (
	// maxMessageBytes caps a single inbound frame, a per-socket read limit
	// against runaway clients.
	maxMessageBytes = 10 << 20
	// maxQueuedBytes is checked by writePacket against the reply it is
	// about to write; a reply larger than this is dropped, never blocked
	// on. Replies still waiting in replyCh are not counted toward it.
	maxQueuedBytes = 100 << 20

	// readDeadline is the per-read inactivity timeout, refreshed on every
	// frame and every pong; unrelated to Server's configurable
	// idle-shutdown timeout, which fires on the connection count, not a
	// single socket's read activity.
	readDeadline = 60 * time.Second
	writeWait    = 10 * time.Second
	pingPeriod   = 54 * time.Second
)

// conn bundles the per-socket state: the gorilla connection, a freshly
// minted App, and the worker pool that runs every request this socket
// submits.
type conn struct {
	id         string
	remoteAddr string
	ws         *websocket.Conn
	app        wsrpc.App
	pool       *workerpool.Pool
	logger     zerolog.Logger

	replyCh chan wsrpc.Packet
	closed  atomic.Bool
	once    sync.Once

	queuedBytes atomic.Int64
}

func newConn(ws *websocket.Conn, remoteAddr string, app wsrpc.App, pool *workerpool.Pool, logger zerolog.Logger) *conn {
	id := uuid.New().String()
	return &conn{
		id:         id,
		remoteAddr: remoteAddr,
		ws:         ws,
		app:        app,
		pool:       pool,
		logger:     logger.With().Str("conn", id).Logger(),
		replyCh:    make(chan wsrpc.Packet, 64),
	}
}

// deliver hands a dispatch result to the writer goroutine. It never
// blocks: a full channel means the writer has fallen far behind, and the
// reply is dropped rather than stalling the worker that produced it.
func (c *conn) deliver(pkt wsrpc.Packet) {
	if c.closed.Load() {
		return
	}
	select {
	case c.replyCh <- pkt:
	default:
		c.logger.Warn().Msg("reply dropped: writer backlog full")
	}
}

// writeLoop is the connection's sole writer. Every outbound frame, pings
// and replies alike, passes through here so the socket never sees two
// concurrent writers.
func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case pkt, ok := <-c.replyCh:
			if !ok {
				return
			}
			backlogged := len(c.replyCh) > 0
			c.writePacket(pkt)
			if backlogged && len(c.replyCh) == 0 {
				c.logger.Debug().Msg("send queue drained")
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writePacket frames pkt per the wire contract: every attachment as its
// own BINARY frame in reverse order, then exactly one terminating TEXT
// frame carrying the response, so a reader can recognize the response
// the instant it sees a TEXT frame and has every attachment already in
// hand.
func (c *conn) writePacket(pkt wsrpc.Packet) {
	size := int64(len(pkt.Response))
	for _, a := range pkt.Attachments {
		size += int64(len(a))
	}

	if c.queuedBytes.Add(size) > maxQueuedBytes {
		c.queuedBytes.Add(-size)
		c.logger.Warn().Int("attachments", len(pkt.Attachments)).Msg("reply dropped: send backlog over limit")
		return
	}
	defer c.queuedBytes.Add(-size)

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	for i := len(pkt.Attachments) - 1; i >= 0; i-- {
		if err := c.ws.WriteMessage(websocket.BinaryMessage, pkt.Attachments[i]); err != nil {
			c.logger.Error().Err(err).Msg("failed to write attachment frame")
			return
		}
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, pkt.Response); err != nil {
		c.logger.Error().Err(err).Msg("failed to write response frame")
		return
	}
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
}

// close tears the socket down and is safe to call more than once; only
// the first call has any effect.
func (c *conn) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.replyCh)
		c.ws.Close()
	})
}
