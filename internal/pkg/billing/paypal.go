package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FinnKramer/PawMarket/internal/pkg/env"
)

const (
	defaultPayPalAPIBaseURL        = "https://api-m.paypal.com"
	defaultPayPalSandboxAPIBaseURL = "https://api-m.sandbox.paypal.com"
)

// PayPalClient talks to the PayPal REST API for subscription management and
// webhook signature verification. There is no official Go SDK; requests are
// built by hand against the documented v1 endpoints.
type PayPalClient struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	APIBaseURL   string

	HTTPClient *http.Client

	accessToken string
	tokenExpiry time.Time
}

// PayPalWebhookEvent is the outer envelope of every PayPal webhook delivery.
type PayPalWebhookEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime string          `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

// PayPalAmount is PayPal's decimal-string money shape ("10.00" + "EUR").
type PayPalAmount struct {
	Value        string `json:"value"`
	Total        string `json:"total"`
	CurrencyCode string `json:"currency_code"`
	Currency     string `json:"currency"`
}

// MinorUnits converts the decimal major-unit string into integer minor units.
// Legacy sale resources use total/currency, newer ones value/currency_code;
// both are handled.
func (a PayPalAmount) MinorUnits() (int64, bool) {
	raw := strings.TrimSpace(a.Value)
	if raw == "" {
		raw = strings.TrimSpace(a.Total)
	}
	if raw == "" {
		return 0, false
	}
	major, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int64(major*100 + 0.5), true
}

// CurrencyString returns whichever currency field the payload populated.
func (a PayPalAmount) CurrencyString() string {
	if a.CurrencyCode != "" {
		return a.CurrencyCode
	}
	return a.Currency
}

// PayPalSubscriptionResource is the resource of BILLING.SUBSCRIPTION.* events
// and the response shape of the subscription detail endpoint.
type PayPalSubscriptionResource struct {
	ID               string     `json:"id"`
	PlanID           string     `json:"plan_id"`
	Status           string     `json:"status"`
	CustomID         string     `json:"custom_id"`
	StartTime        *time.Time `json:"start_time"`
	StatusUpdateTime *time.Time `json:"status_update_time"`
	BillingInfo      struct {
		NextBillingTime *time.Time `json:"next_billing_time"`
		LastPayment     struct {
			Amount PayPalAmount `json:"amount"`
			Time   *time.Time   `json:"time"`
		} `json:"last_payment"`
	} `json:"billing_info"`
}

// PayPalSaleResource is the resource of PAYMENT.SALE.* events.
type PayPalSaleResource struct {
	ID                 string       `json:"id"`
	State              string       `json:"state"`
	Amount             PayPalAmount `json:"amount"`
	BillingAgreementID string       `json:"billing_agreement_id"`
	CustomID           string       `json:"custom"`
}

func NewPayPalClientFromEnv() *PayPalClient {
	base := strings.TrimSpace(env.GetEnv("PAYPAL_API_BASE_URL", ""))
	if base == "" {
		if env.IsDev() {
			base = defaultPayPalSandboxAPIBaseURL
		} else {
			base = defaultPayPalAPIBaseURL
		}
	}

	return &PayPalClient{
		ClientID:     strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("PAYPAL_CLIENT_SECRET", "")),
		WebhookID:    strings.TrimSpace(env.GetEnv("PAYPAL_WEBHOOK_ID", "")),
		APIBaseURL:   strings.TrimRight(base, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// token returns a cached client-credentials access token, refreshing it when
// less than a minute of validity remains.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return "", errors.New("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("paypal token request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", errors.New("paypal token response returned empty access_token")
	}

	c.accessToken = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *PayPalClient) doJSON(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(body))
	}
	if out != nil && len(body) > 0 {
		return json.Unmarshal(body, out)
	}
	return nil
}

// GetSubscription fetches the current state of a billing subscription.
func (c *PayPalClient) GetSubscription(ctx context.Context, subscriptionID string) (*PayPalSubscriptionResource, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	var out PayPalSubscriptionResource
	if err := c.doJSON(ctx, http.MethodGet, "/v1/billing/subscriptions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelSubscription cancels a billing subscription with the given reason.
func (c *PayPalClient) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Cancelled by user"
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions/"+id+"/cancel",
		map[string]string{"reason": reason}, nil)
}

// VerifyWebhookSignature asks PayPal to verify a webhook delivery. Unlike
// Stripe there is no local HMAC scheme; verification is an API round trip.
// In dev the check can be skipped via PAYPAL_SKIP_WEBHOOK_VERIFY for local
// replay testing; the flag is ignored outside dev.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, payload []byte) (bool, error) {
	if env.IsDev() && env.GetEnv("PAYPAL_SKIP_WEBHOOK_VERIFY", "false") == "true" {
		return true, nil
	}
	if c.WebhookID == "" {
		return false, errors.New("PAYPAL_WEBHOOK_ID is not configured")
	}

	body := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}

// ParseCustomID splits the "<user_id>:<listing_id>" custom_id attached at
// checkout. Either part may be absent; malformed input yields zeros.
func ParseCustomID(customID string) (userID, listingID uint) {
	parts := strings.SplitN(strings.TrimSpace(customID), ":", 2)
	if len(parts) > 0 {
		if v, err := strconv.ParseUint(parts[0], 10, 32); err == nil {
			userID = uint(v)
		}
	}
	if len(parts) > 1 {
		if v, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
			listingID = uint(v)
		}
	}
	return userID, listingID
}
