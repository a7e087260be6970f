// Package websocket implements the connection hub: the per-room
// connection sets, the one-byte-tag wire framing, delta routing into the
// Room Manager's documents, and best-effort fan-out to co-tenants.
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/broadcast"
	"github.com/robin-raq/collabboard/pkg/safego"
)

// Hub tracks which connections belong to which room and fans frames
// out among them. Iteration snapshots the member set so joins and
// leaves during a broadcast are tolerated.
type Hub struct {
	manager *roomservice.Manager
	bcast   broadcast.Broadcaster
	logger  *zap.Logger
	ctx     context.Context

	mu     sync.RWMutex
	rooms  map[string]map[*Conn]struct{}
	unsubs map[string]func()
}

// NewHub builds a Hub over the room manager. ctx scopes the
// cross-process broadcaster subscriptions to the server's lifetime.
func NewHub(ctx context.Context, manager *roomservice.Manager, bcast broadcast.Broadcaster, logger *zap.Logger) *Hub {
	return &Hub{
		manager: manager,
		bcast:   bcast,
		logger:  logger.With(zap.String("component", "ws-hub")),
		ctx:     ctx,
		rooms:   make(map[string]map[*Conn]struct{}),
		unsubs:  make(map[string]func()),
	}
}

// register adds conn to its room's member set, opening the
// cross-process subscription on the room's first member.
func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	set, ok := h.rooms[conn.RoomID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.rooms[conn.RoomID] = set

		ch, unsub := h.bcast.Subscribe(h.ctx, conn.RoomID)
		h.unsubs[conn.RoomID] = unsub
		roomID := conn.RoomID
		safego.Go(h.logger, "bcast-sub-"+roomID, func() {
			for delta := range ch {
				h.fanOut(roomID, encodeFrame(FrameDelta, delta), nil)
			}
		})
	}
	set[conn] = struct{}{}
	h.mu.Unlock()

	h.manager.Join(conn.RoomID)
	h.logger.Info("client joined",
		zap.String("conn", conn.ID), zap.String("room", conn.RoomID))
}

// unregister removes conn, tearing down the room's subscription when
// the last member leaves.
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	set, ok := h.rooms[conn.RoomID]
	if ok {
		if _, member := set[conn]; !member {
			ok = false
		}
		delete(set, conn)
		if len(set) == 0 {
			delete(h.rooms, conn.RoomID)
			if unsub := h.unsubs[conn.RoomID]; unsub != nil {
				unsub()
			}
			delete(h.unsubs, conn.RoomID)
		}
	}
	h.mu.Unlock()

	if ok {
		h.manager.Leave(conn.RoomID)
		h.logger.Info("client left",
			zap.String("conn", conn.ID), zap.String("room", conn.RoomID))
	}
	conn.close()
}

// fanOut forwards frame to every member of roomID except the
// originator. Best-effort per peer: an unwritable peer is skipped
// without affecting the others.
func (h *Hub) fanOut(roomID string, frame []byte, except *Conn) {
	h.mu.RLock()
	set := h.rooms[roomID]
	members := make([]*Conn, 0, len(set))
	for c := range set {
		if c != except {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.trySend(frame)
	}
}

// BroadcastServerDelta is the Room Manager's fan-out sink: a
// server-originated delta (tool execution) is framed and delivered to
// every member of the room, including any connection the tool caller
// also holds; harmless, since the CRDT ignores already-applied state.
func (h *Hub) BroadcastServerDelta(roomID string, delta []byte) {
	h.fanOut(roomID, encodeFrame(FrameDelta, delta), nil)
	if err := h.bcast.Publish(h.ctx, roomID, delta); err != nil {
		h.logger.Warn("cross-process publish failed", zap.String("room", roomID), zap.Error(err))
	}
}

// handleFrame routes one incoming wire frame.
func (h *Hub) handleFrame(room *board.Room, conn *Conn, frame []byte) {
	if len(frame) < 2 {
		return
	}
	if !service.IsWSMessageWithinLimit(len(frame)) {
		h.logger.Warn("oversize frame dropped",
			zap.String("conn", conn.ID), zap.Int("bytes", len(frame)))
		return
	}

	tag, payload := frame[0], frame[1:]
	switch tag {
	case FrameDelta:
		// Whole-frame reject at the cap: no apply, no broadcast.
		if !service.CanAddObject(room.Doc.Len()) {
			return
		}
		if err := room.Doc.ApplyUpdate(h.ctx, payload); err != nil {
			h.logger.Debug("malformed delta dropped",
				zap.String("conn", conn.ID), zap.Error(err))
			return
		}
		room.MarkDirty()
		room.Touch()
		h.fanOut(room.ID, frame, conn)
		if err := h.bcast.Publish(h.ctx, room.ID, payload); err != nil {
			h.logger.Warn("cross-process publish failed", zap.String("room", room.ID), zap.Error(err))
		}

	case FrameAwareness:
		// Pure broadcast: never applied, never dirties the room.
		room.Touch()
		h.fanOut(room.ID, frame, conn)
	}
}

// ConnectionCount reports the number of joined connections in roomID.
func (h *Hub) ConnectionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
