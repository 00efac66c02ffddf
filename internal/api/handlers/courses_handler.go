package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/rag"
	"github.com/course-rag/backend/pkg/logger"
)

type CoursesHandler struct {
	system *rag.System
}

func NewCoursesHandler(system *rag.System) *CoursesHandler {
	return &CoursesHandler{system: system}
}

// GetCourseStats returns the course analytics consumed by the UI.
func (h *CoursesHandler) GetCourseStats(c *fiber.Ctx) error {
	total, titles, err := h.system.Analytics(c.Context())
	if err != nil {
		logger.Error("failed to load course analytics", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load course analytics",
		})
	}

	if titles == nil {
		titles = []string{}
	}
	return c.JSON(fiber.Map{
		"total_courses": total,
		"course_titles": titles,
	})
}
