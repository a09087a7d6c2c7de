package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/lifecycle"
)

func newTestReconciler(t *testing.T) (*Reconciler, *repository.Repositories) {
	t.Helper()
	repos := newFakeRepositories()
	engine := lifecycle.NewEngine(repos, nil, nil)
	return NewReconciler(repos, engine), repos
}

func stripeEvent(id, eventType, raw string) stripe.Event {
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func stripeSubscriptionJSON(subID, status string, userID, listingID uint) string {
	return fmt.Sprintf(`{
		"id": %q,
		"status": %q,
		"currency": "eur",
		"cancel_at_period_end": false,
		"current_period_start": 1735689600,
		"current_period_end": 1738368000,
		"metadata": {"user_id": "%d", "listing_id": "%d", "includes_featured": "true"},
		"items": {"data": [{"price": {"id": "price_basic", "unit_amount": 999}}]}
	}`, subID, status, userID, listingID)
}

func seedDraftListing(t *testing.T, repos *repository.Repositories, ownerID uint) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		UUID:   fmt.Sprintf("uuid-%d", ownerID),
		UserID: ownerID,
		Type:   models.ListingTypePuppy,
		Title:  "Labrador puppies",
		Status: models.ListingStatusDraft,
	}
	require.NoError(t, repos.Listing.Create(listing))
	return listing
}

func TestHandleStripeEvent_SubscriptionCreatedLinksAndConverges(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	event := stripeEvent("evt_1", "customer.subscription.created",
		stripeSubscriptionJSON("sub_abc", "active", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), event))

	sub, err := repos.Subscription.GetByProviderID(ProviderStripe, "sub_abc")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, uint(7), sub.UserID)
	assert.Equal(t, "price_basic", sub.PlanID)
	assert.Equal(t, 9.99, sub.Amount)
	assert.True(t, sub.IncludesFeatured)
	require.NotNil(t, sub.ListingID)
	assert.Equal(t, listing.ID, *sub.ListingID)

	// an active subscription sends the draft into moderation, never
	// straight to active
	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPendingReview, got.Status)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.SubscriptionID)
	assert.Equal(t, sub.ID, *got.SubscriptionID)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, sub.CurrentPeriodEnd.Unix(), got.ExpiresAt.Unix())
}

func TestHandleStripeEvent_ReplayedInvoiceRecordsOnePayment(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	created := stripeEvent("evt_1", "customer.subscription.created",
		stripeSubscriptionJSON("sub_abc", "active", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), created))

	invoiceJSON := `{
		"id": "in_1",
		"subscription": "sub_abc",
		"payment_intent": "pi_1",
		"amount_paid": 999,
		"amount_due": 999,
		"currency": "eur"
	}`
	invoice := stripeEvent("evt_2", "invoice.payment_succeeded", invoiceJSON)
	require.NoError(t, r.HandleStripeEvent(context.Background(), invoice))
	// provider retries with the same event id must be acked without side
	// effects
	require.NoError(t, r.HandleStripeEvent(context.Background(), invoice))

	sub, err := repos.Subscription.GetByProviderID(ProviderStripe, "sub_abc")
	require.NoError(t, err)
	payments, err := repos.Payment.ListBySubscription(sub.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusSucceeded, payments[0].Status)
	assert.Equal(t, 9.99, payments[0].Amount)
	require.NotNil(t, payments[0].PaymentIntentID)
	assert.Equal(t, "pi_1", *payments[0].PaymentIntentID)
	require.NotNil(t, payments[0].PaidAt)
}

func TestHandleStripeEvent_RenewalBeforeSubscriptionCreated(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	// the renewal outruns customer.subscription.created
	invoice := stripeEvent("evt_1", "invoice.payment_succeeded", `{
		"id": "in_1",
		"subscription": "sub_late",
		"payment_intent": "pi_1",
		"amount_paid": 999,
		"currency": "eur",
		"metadata": {"user_id": "7"}
	}`)
	require.NoError(t, r.HandleStripeEvent(context.Background(), invoice))

	sub, err := repos.Subscription.GetByProviderID(ProviderStripe, "sub_late")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, uint(7), sub.UserID)
	assert.Empty(t, sub.PlanID)

	// the late subscription event fills in the rest without losing anything
	created := stripeEvent("evt_2", "customer.subscription.created",
		stripeSubscriptionJSON("sub_late", "active", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), created))

	sub, err = repos.Subscription.GetByProviderID(ProviderStripe, "sub_late")
	require.NoError(t, err)
	assert.Equal(t, "price_basic", sub.PlanID)
	require.NotNil(t, sub.ListingID)
	assert.Equal(t, listing.ID, *sub.ListingID)
}

func TestHandleStripeEvent_SubscriptionDeletedExpiresListing(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	created := stripeEvent("evt_1", "customer.subscription.created",
		stripeSubscriptionJSON("sub_abc", "active", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), created))

	// simulate the admin approval that made it publicly visible
	require.NoError(t, repos.Listing.UpdateFields(listing.ID, map[string]interface{}{
		"status":    models.ListingStatusActive,
		"is_active": true,
	}))

	deleted := stripeEvent("evt_2", "customer.subscription.deleted",
		stripeSubscriptionJSON("sub_abc", "canceled", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), deleted))

	sub, err := repos.Subscription.GetByProviderID(ProviderStripe, "sub_abc")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)

	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusExpired, got.Status)
	assert.False(t, got.IsActive)
}

func TestHandleStripeEvent_DeletedListingStaysDeleted(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)
	require.NoError(t, repos.Listing.UpdateFields(listing.ID, map[string]interface{}{
		"status":    models.ListingStatusDeleted,
		"is_active": false,
	}))

	event := stripeEvent("evt_1", "customer.subscription.created",
		stripeSubscriptionJSON("sub_abc", "active", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), event))

	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusDeleted, got.Status)
	assert.False(t, got.IsActive)
}

func TestHandleStripeEvent_UnknownTypeIsAcked(t *testing.T) {
	r, _ := newTestReconciler(t)
	event := stripeEvent("evt_1", "charge.dispute.created", `{}`)
	assert.NoError(t, r.HandleStripeEvent(context.Background(), event))
}

func TestHandleStripeEvent_OwnershipMismatchSkipsLink(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 99) // owned by someone else

	event := stripeEvent("evt_1", "customer.subscription.created",
		stripeSubscriptionJSON("sub_abc", "active", 7, listing.ID))
	require.NoError(t, r.HandleStripeEvent(context.Background(), event))

	sub, err := repos.Subscription.GetByProviderID(ProviderStripe, "sub_abc")
	require.NoError(t, err)
	assert.Nil(t, sub.ListingID)

	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SubscriptionID)
	assert.Equal(t, models.ListingStatusDraft, got.Status)
}

func paypalSubscriptionPayload(eventID, eventType, subID, status, customID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"event_type": %q,
		"resource": {
			"id": %q,
			"plan_id": "P-123",
			"status": %q,
			"custom_id": %q,
			"status_update_time": "2026-02-01T10:00:00Z",
			"billing_info": {
				"next_billing_time": "2026-03-01T00:00:00Z",
				"last_payment": {"amount": {"value": "9.99", "currency_code": "EUR"}}
			}
		}
	}`, eventID, eventType, subID, status, customID))
}

func TestHandlePayPalEvent_SubscriptionActivated(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	payload := paypalSubscriptionPayload("WH-1", "BILLING.SUBSCRIPTION.ACTIVATED",
		"I-ABC123", "ACTIVE", fmt.Sprintf("7:%d", listing.ID))
	require.NoError(t, r.HandlePayPalEvent(context.Background(), payload))

	sub, err := repos.Subscription.GetByProviderID(ProviderPayPal, "I-ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, uint(7), sub.UserID)
	assert.Equal(t, "P-123", sub.PlanID)
	assert.Equal(t, 9.99, sub.Amount)
	assert.Equal(t, "EUR", sub.Currency)
	require.NotNil(t, sub.ListingID)
	assert.Equal(t, listing.ID, *sub.ListingID)

	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPendingReview, got.Status)
}

func TestHandlePayPalEvent_CancellationForcesCancelled(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	activated := paypalSubscriptionPayload("WH-1", "BILLING.SUBSCRIPTION.ACTIVATED",
		"I-ABC123", "ACTIVE", fmt.Sprintf("7:%d", listing.ID))
	require.NoError(t, r.HandlePayPalEvent(context.Background(), activated))

	cancelled := paypalSubscriptionPayload("WH-2", "BILLING.SUBSCRIPTION.CANCELLED",
		"I-ABC123", "CANCELLED", fmt.Sprintf("7:%d", listing.ID))
	require.NoError(t, r.HandlePayPalEvent(context.Background(), cancelled))

	sub, err := repos.Subscription.GetByProviderID(ProviderPayPal, "I-ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	require.NotNil(t, sub.CanceledAt)

	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusExpired, got.Status)
	assert.False(t, got.IsActive)
}

func TestHandlePayPalEvent_SaleCompletedRecordsPayment(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	activated := paypalSubscriptionPayload("WH-1", "BILLING.SUBSCRIPTION.ACTIVATED",
		"I-ABC123", "ACTIVE", fmt.Sprintf("7:%d", listing.ID))
	require.NoError(t, r.HandlePayPalEvent(context.Background(), activated))

	sale := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.SALE.COMPLETED",
		"resource": {
			"id": "SALE-1",
			"state": "completed",
			"billing_agreement_id": "I-ABC123",
			"amount": {"total": "9.99", "currency": "EUR"}
		}
	}`)
	require.NoError(t, r.HandlePayPalEvent(context.Background(), sale))
	// replayed delivery
	require.NoError(t, r.HandlePayPalEvent(context.Background(), sale))

	sub, err := repos.Subscription.GetByProviderID(ProviderPayPal, "I-ABC123")
	require.NoError(t, err)
	payments, err := repos.Payment.ListBySubscription(sub.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusCompleted, payments[0].Status)
	assert.Equal(t, 9.99, payments[0].Amount)
	require.NotNil(t, payments[0].PayPalOrderID)
	assert.Equal(t, "SALE-1", *payments[0].PayPalOrderID)
}

func TestHandlePayPalEvent_SaleDeniedMarksPastDue(t *testing.T) {
	r, repos := newTestReconciler(t)
	listing := seedDraftListing(t, repos, 7)

	activated := paypalSubscriptionPayload("WH-1", "BILLING.SUBSCRIPTION.ACTIVATED",
		"I-ABC123", "ACTIVE", fmt.Sprintf("7:%d", listing.ID))
	require.NoError(t, r.HandlePayPalEvent(context.Background(), activated))

	denied := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.SALE.DENIED",
		"resource": {
			"id": "SALE-1",
			"state": "denied",
			"billing_agreement_id": "I-ABC123",
			"amount": {"total": "9.99", "currency": "EUR"}
		}
	}`)
	require.NoError(t, r.HandlePayPalEvent(context.Background(), denied))

	sub, err := repos.Subscription.GetByProviderID(ProviderPayPal, "I-ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	// failed renewals never produce a payment row
	payments, err := repos.Payment.ListBySubscription(sub.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	got, err := repos.Listing.GetByID(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusExpired, got.Status)
	assert.False(t, got.IsActive)
}
