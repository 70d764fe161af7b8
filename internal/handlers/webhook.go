package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/medreader/labreader-backend/internal/models"
	"github.com/medreader/labreader-backend/internal/services"
)

// WebhookHandler handles Telegram webhook deliveries
type WebhookHandler struct {
	bot *services.BotService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(bot *services.BotService) *WebhookHandler {
	return &WebhookHandler{bot: bot}
}

// HandleWebhook processes one incoming Telegram update. It always
// acknowledges with 200: a non-2xx makes Telegram redeliver the same
// update indefinitely.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	var update models.Update

	if err := c.BodyParser(&update); err != nil {
		log.Printf("⚠️  Unreadable webhook payload ignored: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.bot.ProcessUpdate(c.UserContext(), &update); err != nil {
		log.Printf("❌ Error processing update %d: %v", update.UpdateID, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload simulates a text message for development
type TestWebhookPayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// HandleTestWebhook feeds a synthetic text update through the bot
// pipeline (for development without a public webhook URL)
func (h *WebhookHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload

	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook from chat %d: %s", payload.ChatID, payload.Text)

	update := &models.Update{
		// synthetic IDs stay unique so dedup does not swallow retries
		UpdateID: nextTestUpdateID(),
		Message: &models.Message{
			Chat: &models.Chat{ID: payload.ChatID},
			Text: payload.Text,
		},
	}

	if err := h.bot.ProcessUpdate(c.UserContext(), update); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

var testUpdateCounter int64 = 1_000_000_000

func nextTestUpdateID() int64 {
	testUpdateCounter++
	return testUpdateCounter
}
