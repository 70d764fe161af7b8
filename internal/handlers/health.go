package handlers

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/medreader/labreader-backend/internal/storage"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version string
	store   storage.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store storage.Store) *HealthHandler {
	return &HealthHandler{
		Version: version,
		store:   store,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	storeStatus := "disabled"
	if h.store != nil {
		storeStatus = "connected"
		if err := h.store.Ping(); err != nil {
			storeStatus = "error: " + err.Error()
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"service": "Lab Reader Backend",
		"version": h.Version,
		"services": fiber.Map{
			"sessions": storeStatus,
			"telegram": os.Getenv("TELEGRAM_BOT_TOKEN") != "",
		},
	})
}
