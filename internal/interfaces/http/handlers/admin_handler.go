package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/llm"
	"github.com/robin-raq/collabboard/internal/infrastructure/tool"
	apperrors "github.com/robin-raq/collabboard/pkg/errors"
)

// AdminHandler serves /health and the operator surface boardctl talks
// to: room listing/inspection, forced snapshots, cache maintenance.
type AdminHandler struct {
	manager     *roomservice.Manager
	cache       *service.CommandCache
	router      *llm.Router
	persistence string
	provider    string
	logger      *zap.Logger
}

// NewAdminHandler builds the handler. router may be nil when no model
// provider is configured.
func NewAdminHandler(manager *roomservice.Manager, cache *service.CommandCache, router *llm.Router, persistence, provider string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		manager:     manager,
		cache:       cache,
		router:      router,
		persistence: persistence,
		provider:    provider,
		logger:      logger.With(zap.String("handler", "admin")),
	}
}

// Health handles GET /health.
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"rooms":         h.manager.RoomCount(),
		"persistence":   h.persistence,
		"model":         h.provider,
		"cache_recipes": h.cache.Size(),
	})
}

// ListRooms handles GET /api/rooms.
func (h *AdminHandler) ListRooms(c *gin.Context) {
	rooms := h.manager.ListRooms()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// InspectRoom handles GET /api/rooms/:room: the room's bookkeeping
// plus the same human-readable board listing the model loop sees.
func (h *AdminHandler) InspectRoom(c *gin.Context) {
	roomID := c.Param("room")
	room, ok := h.manager.Get(roomID)
	if !ok {
		writeError(c, apperrors.NewNotFoundError("room not resident"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      roomID,
		"objects": room.Doc.Len(),
		"dirty":   room.IsDirty(),
		"state":   tool.BuildBoardContext(room.Doc.Objects()),
	})
}

// SnapshotRoom handles POST /api/rooms/:room/snapshot.
func (h *AdminHandler) SnapshotRoom(c *gin.Context) {
	roomID := c.Param("room")
	if _, ok := h.manager.Get(roomID); !ok {
		writeError(c, apperrors.NewNotFoundError("room not resident"))
		return
	}
	if err := h.manager.ForceSnapshot(c.Request.Context(), roomID); err != nil {
		writeError(c, apperrors.NewServiceUnavailError("snapshot failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": roomID})
}

// ClearCache handles POST /api/cache/clear.
func (h *AdminHandler) ClearCache(c *gin.Context) {
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cache_recipes": 0})
}

// CacheStats handles GET /api/cache.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cache_recipes": h.cache.Size()})
}

// ListProviders handles GET /api/providers.
func (h *AdminHandler) ListProviders(c *gin.Context) {
	if h.router == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []llm.ProviderStatus{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": h.router.ListProviders(c.Request.Context())})
}
