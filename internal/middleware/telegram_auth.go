package middleware

import (
	"crypto/subtle"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
)

// ValidateTelegramSecret validates the secret token Telegram echoes back
// on every webhook delivery (set via setWebhook's secret_token)
func ValidateTelegramSecret() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := os.Getenv("TELEGRAM_WEBHOOK_SECRET")
		if secret == "" {
			// Log error but don't expose to client
			fmt.Println("ERROR: TELEGRAM_WEBHOOK_SECRET not set")
			return c.Status(500).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		received := c.Get("X-Telegram-Bot-Api-Secret-Token")
		if received == "" {
			return c.Status(401).JSON(fiber.Map{
				"error": "Missing Telegram secret token",
			})
		}

		if subtle.ConstantTimeCompare([]byte(received), []byte(secret)) != 1 {
			return c.Status(401).JSON(fiber.Map{
				"error": "Invalid secret token",
			})
		}

		return c.Next()
	}
}
