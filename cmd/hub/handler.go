// In file: cmd/hub/handler.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agent"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/api"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/llm"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// Turner runs one chat turn.
type Turner interface {
	Turn(ctx context.Context, req agent.TurnRequest) (*api.ChatResponse, error)
}

// ChatHandler maps the chat endpoint onto the orchestrator. It owns the HTTP
// status mapping and nothing else.
type ChatHandler struct {
	agent Turner
}

func NewChatHandler(t Turner) *ChatHandler {
	return &ChatHandler{agent: t}
}

func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request", Details: err.Error()})
		return
	}

	log.Printf("--- New chat turn (User: %q, Telegram: %d, Messages: %d) ---", req.UserID, req.TelegramID, len(req.Messages))

	resp, err := h.agent.Turn(c.Request.Context(), agent.TurnRequest{
		Messages: req.Messages,
		Identity: tools.Identity{UserID: req.UserID, TelegramID: req.TelegramID},
	})
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request", Details: err.Error()})
	case err != nil:
		log.Printf("❌ Chat turn failed: %v", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to process chat request"})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// ProfileHandler serves the usage profile of a model to operators.
type ProfileHandler struct {
	profiler *llm.Profiler
}

func NewProfileHandler(p *llm.Profiler) *ProfileHandler {
	return &ProfileHandler{profiler: p}
}

func (h *ProfileHandler) HandleGetProfile(c *gin.Context) {
	model := c.Param("model")
	profile, err := h.profiler.GetProfile(c.Request.Context(), model)
	if err != nil {
		log.Printf("❌ Failed to read the profile of %s: %v", model, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to read model profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
