package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/board"
	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/tool"
	apperrors "github.com/robin-raq/collabboard/pkg/errors"
	"github.com/robin-raq/collabboard/pkg/safego"
)

const (
	// defaultBoardID is used when the request omits boardId.
	defaultBoardID = "default"
	// aiWallClock bounds one command end to end, including every model
	// turn.
	aiWallClock = 60 * time.Second
	// streamBufSize bounds the orchestrator->SSE channel.
	streamBufSize = 64
)

// AIHandler serves POST /api/ai and POST /api/ai/stream: one
// orchestrator run per request, bound to the target room's document.
type AIHandler struct {
	manager *roomservice.Manager
	cache   *service.CommandCache
	client  service.LLMClient
	model   string
	logger  *zap.Logger
}

// NewAIHandler builds the handler. client may be nil when no external
// model is configured; the orchestrator then uses the local fallback
// parser only.
func NewAIHandler(manager *roomservice.Manager, cache *service.CommandCache, client service.LLMClient, model string, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		manager: manager,
		cache:   cache,
		client:  client,
		model:   model,
		logger:  logger.With(zap.String("handler", "ai")),
	}
}

// AIRequest is the JSON body shared by both endpoints.
type AIRequest struct {
	Message string `json:"message"`
	BoardID string `json:"boardId"`
}

// orchestratorFor assembles a per-request orchestrator bound to the
// room's document. The cache, model client, and their circuit
// breaking are shared across rooms; the tool executor and board
// context are not.
func (h *AIHandler) orchestratorFor(room *board.Room) *service.Orchestrator {
	exec := tool.New(room.Doc, time.Now().UnixNano())
	buildCtx := func() string { return tool.BuildBoardContext(room.Doc.Objects()) }
	return service.NewOrchestrator(h.cache, exec, h.client, h.model, buildCtx, nil)
}

func (h *AIHandler) resolveRoom(c *gin.Context, req *AIRequest) (*board.Room, error) {
	if req.BoardID == "" {
		req.BoardID = defaultBoardID
	}
	if !service.IsValidRoomName(req.BoardID) {
		return nil, apperrors.NewInvalidInputError("invalid board id")
	}
	if !service.IsAIMessageValid(req.Message) {
		return nil, apperrors.NewInvalidInputError("message must be 1-2000 characters")
	}

	room, err := h.manager.GetOrCreate(c.Request.Context(), req.BoardID)
	if err != nil {
		return nil, apperrors.NewServiceUnavailError("room unavailable", err)
	}
	room.Touch()
	return room, nil
}

// Run handles POST /api/ai: the orchestrator runs synchronously and
// the final done/error event becomes the JSON response.
func (h *AIHandler) Run(c *gin.Context) {
	var req AIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	room, err := h.resolveRoom(c, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), aiWallClock)
	defer cancel()

	var final board.StreamEvent
	h.orchestratorFor(room).Run(ctx, req.Message, func(ev board.StreamEvent) {
		if ev.Type == board.EventDone || ev.Type == board.EventError {
			final = ev
		}
	})

	switch final.Type {
	case board.EventDone:
		c.JSON(http.StatusOK, gin.H{
			"message": final.Message,
			"actions": final.Actions,
			"cached":  final.Cached,
		})
	case board.EventError:
		if final.Error == "aborted" {
			writeError(c, apperrors.NewCancelledError("aborted"))
			return
		}
		writeError(c, apperrors.NewInternalError(final.Error))
	default:
		writeError(c, apperrors.NewInternalError("command produced no result"))
	}
}

// Stream handles POST /api/ai/stream: every orchestrator event is
// written as one SSE data line until done/error, client disconnect,
// or the wall-clock timeout.
func (h *AIHandler) Stream(c *gin.Context) {
	var req AIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	room, err := h.resolveRoom(c, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(c.Request.Context(), aiWallClock)
	defer cancel()

	events := make(chan board.StreamEvent, streamBufSize)
	safego.Go(h.logger, "ai-stream", func() {
		defer close(events)
		h.orchestratorFor(room).Run(ctx, req.Message, func(ev board.StreamEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	})

	flusher, _ := c.Writer.(http.Flusher)
	for {
		select {
		case <-ctx.Done():
			h.writeEvent(c, board.Err("aborted"), flusher)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			h.writeEvent(c, ev, flusher)
			if ev.Type == board.EventDone || ev.Type == board.EventError {
				return
			}
		}
	}
}

func (h *AIHandler) writeEvent(c *gin.Context, ev board.StreamEvent, flusher http.Flusher) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal stream event failed", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	if flusher != nil {
		flusher.Flush()
	}
}
