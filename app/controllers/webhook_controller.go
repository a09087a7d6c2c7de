package controllers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// HandleStripeWebhook receives Stripe events. Signature failures are
// permanent and answered with 401 so Stripe stops retrying a bad delivery;
// processing failures return 500 so the event is redelivered.
func HandleStripeWebhook(c *fiber.Ctx) error {
	if stripeProvider == nil {
		log.Error("[Webhook] stripe provider not configured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Stripe not configured"})
	}

	payload := c.Body()
	event, err := stripeProvider.VerifyWebhook(payload, c.Get("Stripe-Signature"))
	if err != nil {
		log.Warnf("[Webhook] stripe signature verification failed: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid signature"})
	}

	if err := reconciler.HandleStripeEvent(c.Context(), event); err != nil {
		log.Errorf("[Webhook] stripe event %s processing failed: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
	}

	return c.JSON(fiber.Map{"received": true})
}

// HandlePayPalWebhook receives PayPal events, verified via the PayPal
// verification API. Same retry contract as the Stripe handler.
func HandlePayPalWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	valid, err := paypalClient.VerifyWebhookSignature(c.Context(), http.Header(c.GetReqHeaders()), payload)
	if err != nil {
		log.Errorf("[Webhook] paypal signature verification errored: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Signature verification failed"})
	}
	if !valid {
		log.Warn("[Webhook] paypal signature verification failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid signature"})
	}

	if err := reconciler.HandlePayPalEvent(c.Context(), payload); err != nil {
		log.Errorf("[Webhook] paypal event processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
	}

	return c.JSON(fiber.Map{"received": true})
}
