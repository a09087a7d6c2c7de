package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayPalClient(server *httptest.Server) *PayPalClient {
	return &PayPalClient{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-ID",
		APIBaseURL:   server.URL,
		HTTPClient:   server.Client(),
	}
}

func paypalTokenHandler(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "client-id", user)
	assert.Equal(t, "client-secret", pass)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token": "token-1", "expires_in": 3600}`))
}

func TestPayPalClientTokenIsCached(t *testing.T) {
	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenCalls++
			paypalTokenHandler(t, w, r)
		case "/v1/billing/subscriptions/I-ABC123":
			assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id": "I-ABC123", "status": "ACTIVE", "plan_id": "P-1"}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestPayPalClient(server)
	ctx := context.Background()

	sub, err := client.GetSubscription(ctx, "I-ABC123")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", sub.Status)
	assert.Equal(t, "P-1", sub.PlanID)

	_, err = client.GetSubscription(ctx, "I-ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestPayPalClientCancelSubscription(t *testing.T) {
	var cancelBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			paypalTokenHandler(t, w, r)
		case "/v1/billing/subscriptions/I-ABC123/cancel":
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&cancelBody))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestPayPalClient(server)
	require.NoError(t, client.CancelSubscription(context.Background(), "I-ABC123", ""))
	assert.Equal(t, "Cancelled by user", cancelBody["reason"])
}

func TestPayPalClientCancelSubscriptionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			paypalTokenHandler(t, w, r)
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name": "UNPROCESSABLE_ENTITY"}`))
	}))
	defer server.Close()

	client := newTestPayPalClient(server)
	err := client.CancelSubscription(context.Background(), "I-ABC123", "no longer needed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=422")
}

func TestPayPalClientVerifyWebhookSignature(t *testing.T) {
	var verifyReq map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			paypalTokenHandler(t, w, r)
		case "/v1/notifications/verify-webhook-signature":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&verifyReq))
			_, _ = w.Write([]byte(`{"verification_status": "SUCCESS"}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("Paypal-Transmission-Id", "tid-1")
	headers.Set("Paypal-Transmission-Sig", "sig-1")
	headers.Set("Paypal-Transmission-Time", "2026-02-01T10:00:00Z")
	headers.Set("Paypal-Cert-Url", "https://api.paypal.com/cert")
	headers.Set("Paypal-Auth-Algo", "SHA256withRSA")

	client := newTestPayPalClient(server)
	ok, err := client.VerifyWebhookSignature(context.Background(), headers, []byte(`{"id": "WH-1"}`))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "tid-1", verifyReq["transmission_id"])
	assert.Equal(t, "WH-ID", verifyReq["webhook_id"])
	assert.Equal(t, map[string]interface{}{"id": "WH-1"}, verifyReq["webhook_event"])
}

func TestPayPalClientVerifyWebhookSignatureFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			paypalTokenHandler(t, w, r)
			return
		}
		_, _ = w.Write([]byte(`{"verification_status": "FAILURE"}`))
	}))
	defer server.Close()

	client := newTestPayPalClient(server)
	ok, err := client.VerifyWebhookSignature(context.Background(), http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPayPalClientVerifyWebhookSignatureRequiresWebhookID(t *testing.T) {
	client := &PayPalClient{ClientID: "id", ClientSecret: "secret"}
	_, err := client.VerifyWebhookSignature(context.Background(), http.Header{}, []byte(`{}`))
	require.Error(t, err)
}

func TestPayPalAmountMinorUnits(t *testing.T) {
	cases := []struct {
		amount PayPalAmount
		want   int64
		ok     bool
	}{
		{PayPalAmount{Value: "9.99", CurrencyCode: "EUR"}, 999, true},
		{PayPalAmount{Total: "10.00", Currency: "EUR"}, 1000, true},
		{PayPalAmount{Value: "0.01"}, 1, true},
		{PayPalAmount{Value: "19.90"}, 1990, true},
		{PayPalAmount{}, 0, false},
		{PayPalAmount{Value: "not-a-number"}, 0, false},
	}
	for _, tc := range cases {
		got, ok := tc.amount.MinorUnits()
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseCustomID(t *testing.T) {
	cases := []struct {
		in          string
		wantUser    uint
		wantListing uint
	}{
		{"7:12", 7, 12},
		{"7", 7, 0},
		{":12", 0, 12},
		{"", 0, 0},
		{"abc:def", 0, 0},
		{" 7:12 ", 7, 12},
	}
	for _, tc := range cases {
		user, listing := ParseCustomID(tc.in)
		assert.Equal(t, tc.wantUser, user, "input %q", tc.in)
		assert.Equal(t, tc.wantListing, listing, "input %q", tc.in)
	}
}

func TestPayPalClientTokenRefreshesWhenExpiring(t *testing.T) {
	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			tokenCalls++
			paypalTokenHandler(t, w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id": "I-ABC123"}`))
	}))
	defer server.Close()

	client := newTestPayPalClient(server)
	client.accessToken = "stale"
	client.tokenExpiry = time.Now().Add(30 * time.Second) // under the refresh margin

	_, err := client.GetSubscription(context.Background(), "I-ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
	assert.Equal(t, "token-1", client.accessToken)
}
