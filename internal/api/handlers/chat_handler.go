package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yooventa/tubetalk/internal/services"
	"github.com/yooventa/tubetalk/internal/utils"
)

type ChatHandler struct {
	chat services.ChatService
	log  *logrus.Logger
}

func NewChatHandler(chat services.ChatService, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log}
}

type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Send streams the answer to one question over SSE. Errors before the first
// event are plain JSON; once the stream is open everything, failures
// included, arrives as events.
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Send", "message is required", err))
		return
	}

	events, err := h.chat.HandleTurn(c.Request.Context(), c.Param("thread_id"), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, utils.E(utils.CodeInternal, "ChatHandler.Send", "streaming unsupported", nil))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.WithError(err).Error("failed to marshal answer event")
			continue
		}
		if _, err := c.Writer.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
			// client went away; keep draining so the turn can finish persisting
			go func() {
				for range events {
				}
			}()
			return
		}
		flusher.Flush()
	}
}
