package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/ingestion"
	"github.com/course-rag/backend/internal/rag"
	"github.com/course-rag/backend/pkg/logger"
)

type DocumentHandler struct {
	system *rag.System
}

func NewDocumentHandler(system *rag.System) *DocumentHandler {
	return &DocumentHandler{system: system}
}

// UploadDocument ingests one course document posted as text.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		FileName string `json:"file_name"`
		Content  string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document content is required",
		})
	}

	doc, err := ingestion.Parse(req.FileName, req.Content)
	if err != nil {
		logger.Error("failed to parse course document", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse course document",
		})
	}

	chunks, skipped, err := h.system.AddCourse(c.Context(), doc, req.FileName)
	if err != nil {
		logger.Error("failed to index course document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to index course document",
		})
	}

	return c.JSON(fiber.Map{
		"course_title": doc.Course.Title,
		"chunks":       chunks,
		"skipped":      skipped,
	})
}
