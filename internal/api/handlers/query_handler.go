package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/rag"
	"github.com/course-rag/backend/internal/storage/models"
	"github.com/course-rag/backend/pkg/logger"
)

// QueryHistory is the slice of storage the history endpoint needs.
type QueryHistory interface {
	RecentQueries(sessionID string, limit int) ([]models.QueryRecord, error)
}

type QueryHandler struct {
	system  *rag.System
	history QueryHistory
}

func NewQueryHandler(system *rag.System, history QueryHistory) *QueryHandler {
	return &QueryHandler{system: system, history: history}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	answer, err := h.system.Answer(c.Context(), req.Query, req.SessionID)
	if err != nil {
		logger.Error("failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(answer)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	if h.history == nil {
		return c.JSON(fiber.Map{"history": []models.QueryRecord{}})
	}

	records, err := h.history.RecentQueries(sessionID, c.QueryInt("limit", 20))
	if err != nil {
		logger.Error("failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		history = append(history, fiber.Map{
			"id":         rec.ID,
			"query":      rec.QueryText,
			"answer":     rec.Answer,
			"tool_used":  rec.ToolUsed,
			"latency_ms": rec.LatencyMS,
			"created_at": rec.CreatedAt.Unix(),
		})
	}
	return c.JSON(fiber.Map{"history": history})
}
