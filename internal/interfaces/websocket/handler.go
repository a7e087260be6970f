package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/service"
)

// closeViolation is the close code sent on a policy rejection after
// the upgrade (room vanished, etc). Pre-upgrade rejections are plain
// HTTP statuses.
const closeViolation = websocket.ClosePolicyViolation

// OriginsFunc supplies the current origin allow-list; backed by the
// config watcher so edits to config.yaml apply to new connections
// without a restart.
type OriginsFunc func() []string

// Handler upgrades GET /<room_id> requests and runs the per-connection
// state machine: Opening -> Validating -> Joining -> Active -> Closing.
type Handler struct {
	hub     *Hub
	origins OriginsFunc
	logger  *zap.Logger
}

// NewHandler builds the upgrade handler.
func NewHandler(hub *Hub, origins OriginsFunc, logger *zap.Logger) *Handler {
	return &Handler{
		hub:     hub,
		origins: origins,
		logger:  logger.With(zap.String("component", "ws-handler")),
	}
}

// Serve handles one websocket connection for the room named in the
// URL path.
func (h *Handler) Serve(c *gin.Context) {
	// Validating: room-name shape, origin, principal.
	roomID := strings.TrimPrefix(c.Param("room"), "/")
	if !service.IsValidRoomName(roomID) {
		c.String(http.StatusForbidden, "invalid room name")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return service.IsOriginAllowed(r.Header.Get("Origin"), h.origins())
		},
	}

	principal := bearerToken(c)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response (403 on origin).
		h.logger.Debug("upgrade rejected", zap.String("room", roomID), zap.Error(err))
		return
	}

	conn := newConn(uuid.NewString(), roomID, principal, ws, h.logger)
	go conn.writePump()

	// Joining: register first so frames fanned out during the load
	// buffer on the connection, then resolve the document (may block
	// on the snapshot load).
	h.hub.register(conn)
	defer h.hub.unregister(conn)

	room, err := h.hub.manager.GetOrCreate(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("room resolution failed", zap.String("room", roomID), zap.Error(err))
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeViolation, "room unavailable"), writeDeadline())
		return
	}

	// Active: initial-state frame first, then everything buffered
	// during the load, in arrival order.
	state, err := room.Doc.EncodeState()
	if err != nil {
		h.logger.Error("encode initial state failed", zap.String("room", roomID), zap.Error(err))
		return
	}
	conn.sendInitial(encodeFrame(FrameDelta, state))
	conn.markReady()

	h.readLoop(room, conn)
}

// readLoop pumps incoming frames through the hub's routing until the
// transport closes. The read limit sits well above the forwardable
// frame ceiling: oversize-but-readable frames are dropped with the
// connection kept open; only a frame large enough to be a memory
// hazard tears the connection down.
func (h *Handler) readLoop(room *board.Room, conn *Conn) {
	conn.ws.SetReadLimit(4 * int64(service.MaxWSMessageBytes))
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, frame, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", zap.String("conn", conn.ID), zap.Error(err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		h.hub.handleFrame(room, conn, frame)
	}
}

func writeDeadline() time.Time {
	return time.Now().Add(writeWait)
}

func bearerToken(c *gin.Context) string {
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	auth := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}
