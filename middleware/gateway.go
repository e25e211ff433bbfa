package middleware

import (
	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Headers carried by Cashfree webhook deliveries.
const (
	HeaderWebhookSignature = "x-webhook-signature"
	HeaderWebhookTimestamp = "x-webhook-timestamp"
)

// WebhookSignature rejects gateway callbacks whose HMAC over timestamp+body does
// not match the shared webhook secret.
func WebhookSignature(secret string, log *zap.Logger) fiber.Handler {
	if secret == "" {
		log.Warn("CASHFREE_WEBHOOK_SECRET is not set; payment webhooks will be rejected")
	}

	return func(c *fiber.Ctx) error {
		signature := c.Get(HeaderWebhookSignature)
		timestamp := c.Get(HeaderWebhookTimestamp)
		if !services.VerifyWebhookSignature(secret, timestamp, c.Body(), signature) {
			log.Warn("payment webhook signature rejected",
				zap.String("ip", c.IP()),
				zap.Bool("has_signature", signature != ""))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid webhook signature",
				"code":    "unauthorized",
			})
		}
		return c.Next()
	}
}
