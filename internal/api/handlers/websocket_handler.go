package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/rag"
	"github.com/course-rag/backend/pkg/logger"
)

// WebSocketHandler serves the interactive chat endpoint. Answers are
// emitted word by word, followed by a completion frame carrying the
// sources and session id.
type WebSocketHandler struct {
	system *rag.System
}

func NewWebSocketHandler(system *rag.System) *WebSocketHandler {
	return &WebSocketHandler{system: system}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("websocket connection established")
	defer func() {
		c.Close()
		logger.Info("websocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			SessionID string `json:"session_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("websocket read ended", zap.Error(err))
			return
		}

		if msg.Type != "query" || msg.Content == "" {
			continue
		}

		if err := h.streamAnswer(c, msg.Content, msg.SessionID); err != nil {
			logger.Error("failed to stream answer", zap.Error(err))
			h.send(c, map[string]interface{}{
				"type":  "error",
				"error": "Failed to process query",
			})
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, query, sessionID string) error {
	answer, err := h.system.Answer(context.Background(), query, sessionID)
	if err != nil {
		return err
	}

	words := strings.Fields(answer.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.send(c, map[string]interface{}{
			"type":    "chunk",
			"content": chunk,
		}); err != nil {
			return err
		}
	}

	return h.send(c, map[string]interface{}{
		"type":       "complete",
		"session_id": answer.SessionID,
		"sources":    answer.Sources,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg map[string]interface{}) error {
	return c.WriteJSON(msg)
}
