package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FinnKramer/PawMarket/internal/pkg/billing"
)

func newWebhookTestApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	app.Post("/webhooks/paypal", HandlePayPalWebhook)
	return app
}

func TestHandleStripeWebhook_NotConfigured(t *testing.T) {
	original := stripeProvider
	stripeProvider = nil
	t.Cleanup(func() { stripeProvider = original })

	app := newWebhookTestApp()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHandleStripeWebhook_InvalidSignatureIsPermanent(t *testing.T) {
	original := stripeProvider
	stripeProvider = &billing.StripeProvider{WebhookSecret: "whsec_test"}
	t.Cleanup(func() { stripeProvider = original })

	app := newWebhookTestApp()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id": "evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	// 401, not 500: the provider must not retry a forged delivery
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandlePayPalWebhook_InvalidSignatureIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			_, _ = w.Write([]byte(`{"access_token": "token-1", "expires_in": 3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"verification_status": "FAILURE"}`))
	}))
	defer server.Close()

	original := paypalClient
	paypalClient = &billing.PayPalClient{
		ClientID:     "id",
		ClientSecret: "secret",
		WebhookID:    "WH-ID",
		APIBaseURL:   server.URL,
		HTTPClient:   server.Client(),
	}
	t.Cleanup(func() { paypalClient = original })

	app := newWebhookTestApp()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(`{"id": "WH-1"}`))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandlePayPalWebhook_VerificationErrorTriggersRetry(t *testing.T) {
	original := paypalClient
	// no webhook id configured: verification errors and the provider should
	// redeliver later
	paypalClient = &billing.PayPalClient{ClientID: "id", ClientSecret: "secret"}
	t.Cleanup(func() { paypalClient = original })

	app := newWebhookTestApp()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(`{"id": "WH-1"}`))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
