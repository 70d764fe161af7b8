package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/medreader/labreader-backend/internal/handlers"
	"github.com/medreader/labreader-backend/internal/middleware"
	"github.com/medreader/labreader-backend/internal/services"
	"github.com/medreader/labreader-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, bot *services.BotService) {
	webhookHandler := handlers.NewWebhookHandler(bot)
	healthHandler := handlers.NewHealthHandler("1.0.0", store)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Lab Reader Bot Backend",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":        "/health",
				"webhook":       "/webhook/telegram",
				"test_telegram": "/test/telegram",
			},
		})
	})

	app.Get("/health", healthHandler.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Telegram webhook - ENVIRONMENT-AWARE VALIDATION
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		// Development: skip secret validation for local tunnels
		webhooks.Post("/telegram", webhookHandler.HandleWebhook)
		if os.Getenv("ENVIRONMENT") == "development" {
			println("⚠️  Telegram webhook validation DISABLED for development")
		}
	} else {
		webhooks.Post("/telegram", middleware.ValidateTelegramSecret(), webhookHandler.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	app.Post("/test/telegram", webhookHandler.HandleTestWebhook)
}
