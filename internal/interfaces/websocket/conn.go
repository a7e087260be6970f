package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufSize = 256
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
)

// Conn is one joined client connection: a single-writer send queue in
// front of the gorilla socket, plus a pre-join buffer that holds
// fanned-out frames until the initial-state frame has been queued, so
// a joiner never sees a forwarded delta before its snapshot.
type Conn struct {
	ID        string
	RoomID    string
	Principal string

	ws     *websocket.Conn
	send   chan []byte
	closed atomic.Bool
	logger *zap.Logger

	mu      sync.Mutex
	ready   bool
	pending [][]byte
}

func newConn(id, roomID, principal string, ws *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		ID:        id,
		RoomID:    roomID,
		Principal: principal,
		ws:        ws,
		send:      make(chan []byte, sendBufSize),
		logger:    logger.With(zap.String("conn", id), zap.String("room", roomID)),
	}
}

// trySend enqueues frame best-effort: a closed connection or a full
// send queue drops the frame for this peer only.
func (c *Conn) trySend(frame []byte) {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	if !c.ready {
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- frame:
	default:
		c.logger.Debug("send queue full, dropping frame for peer")
	}
}

// sendInitial queues the initial-state frame directly, bypassing the
// pending buffer. Valid only before markReady.
func (c *Conn) sendInitial(frame []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// markReady flushes the frames buffered during the document load, in
// arrival order, behind the initial-state frame already queued.
func (c *Conn) markReady() {
	c.mu.Lock()
	c.ready = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, frame := range pending {
		select {
		case c.send <- frame:
		default:
		}
	}
}

// writePump is the connection's single socket writer, with the
// standard gorilla ping keepalive.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close is idempotent; the hub's unregister path and both pumps all
// funnel through it.
func (c *Conn) close() {
	if c.closed.Swap(true) {
		return
	}
	if c.ws != nil {
		c.ws.Close()
	}
}
