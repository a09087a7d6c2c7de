package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/lifecycle"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"
)

// Reconciler translates inbound provider webhooks into subscription upserts
// and listing convergence. Every handler is idempotent: replayed deliveries
// are detected via the webhook event store and the payment dedup key, so
// at-least-once delivery never double-applies side effects.
type Reconciler struct {
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	listings repository.ListingRepository
	events   repository.WebhookEventRepository
	engine   *lifecycle.Engine
}

// NewReconciler creates a reconciler bound to the lifecycle engine.
func NewReconciler(repos *repository.Repositories, engine *lifecycle.Engine) *Reconciler {
	return &Reconciler{
		subs:     repos.Subscription,
		payments: repos.Payment,
		listings: repos.Listing,
		events:   repos.WebhookEvent,
		engine:   engine,
	}
}

// HandleStripeEvent processes a signature-verified Stripe event. Unrecognized
// event types are acknowledged and logged, never rejected: providers retry on
// non-2xx and harmless types must not cause retry storms.
func (r *Reconciler) HandleStripeEvent(ctx context.Context, event stripe.Event) error {
	firstDelivery, stored, err := r.recordEvent(ProviderStripe, event.ID, string(event.Type), string(event.Data.Raw))
	if err != nil {
		return err
	}
	if !firstDelivery && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		log.Infof("[Billing] stripe event %s already processed, acking replay", event.ID)
		return nil
	}

	var procErr error
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		procErr = r.applyStripeSubscription(ctx, event, "")
	case "customer.subscription.deleted":
		procErr = r.applyStripeSubscription(ctx, event, models.SubscriptionStatusCancelled)
	case "invoice.payment_succeeded":
		procErr = r.applyStripeInvoice(ctx, event, true)
	case "invoice.payment_failed":
		procErr = r.applyStripeInvoice(ctx, event, false)
	default:
		log.Infof("[Billing] ignoring stripe event type %s (%s)", event.Type, event.ID)
	}

	r.markProcessed(stored.ID, procErr)
	return procErr
}

// HandlePayPalEvent processes a signature-verified PayPal webhook payload.
func (r *Reconciler) HandlePayPalEvent(ctx context.Context, payload []byte) error {
	var event PayPalWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("parsing paypal webhook payload: %w", err)
	}

	firstDelivery, stored, err := r.recordEvent(ProviderPayPal, event.ID, event.EventType, string(payload))
	if err != nil {
		return err
	}
	if !firstDelivery && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		log.Infof("[Billing] paypal event %s already processed, acking replay", event.ID)
		return nil
	}

	var procErr error
	switch event.EventType {
	case "BILLING.SUBSCRIPTION.CREATED", "BILLING.SUBSCRIPTION.UPDATED",
		"BILLING.SUBSCRIPTION.ACTIVATED", "BILLING.SUBSCRIPTION.SUSPENDED",
		"BILLING.SUBSCRIPTION.EXPIRED":
		procErr = r.applyPayPalSubscription(ctx, &event, "")
	case "BILLING.SUBSCRIPTION.CANCELLED":
		procErr = r.applyPayPalSubscription(ctx, &event, models.SubscriptionStatusCancelled)
	case "PAYMENT.SALE.COMPLETED":
		procErr = r.applyPayPalSale(ctx, &event, true)
	case "PAYMENT.SALE.DENIED", "PAYMENT.SALE.REFUNDED":
		procErr = r.applyPayPalSale(ctx, &event, false)
	default:
		log.Infof("[Billing] ignoring paypal event type %s (%s)", event.EventType, event.ID)
	}

	r.markProcessed(stored.ID, procErr)
	return procErr
}

// ApplySubscription upserts the canonical subscription row for ev and
// converges the linked listing. Shared by both providers.
func (r *Reconciler) ApplySubscription(ctx context.Context, ev SubscriptionEvent) error {
	if ev.ProviderSubscriptionID == "" {
		return fmt.Errorf("subscription event %s carries no subscription id", ev.EventID)
	}

	sub := &models.Subscription{
		UserID:             ev.UserID,
		PaymentMethod:      ev.Provider,
		SubscriptionID:     ev.ProviderSubscriptionID,
		PlanID:             ev.PlanID,
		Status:             ev.Status,
		CurrentPeriodStart: ev.CurrentPeriodStart,
		CurrentPeriodEnd:   ev.CurrentPeriodEnd,
		CancelAtPeriodEnd:  ev.CancelAtPeriodEnd,
		CanceledAt:         ev.CanceledAt,
		IncludesFeatured:   ev.IncludesFeatured,
		Amount:             models.MajorUnits(ev.AmountMinor),
		Currency:           ev.Currency,
	}

	// Events may omit metadata; never zero out an owner we already know.
	if existing, err := r.subs.GetByProviderID(ev.Provider, ev.ProviderSubscriptionID); err == nil {
		if sub.UserID == 0 {
			sub.UserID = existing.UserID
		}
		if sub.PlanID == "" {
			sub.PlanID = existing.PlanID
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := r.subs.UpsertByProviderID(sub); err != nil {
		return err
	}

	if !sub.IsLinked() && ev.ListingID != 0 {
		r.lateLink(sub, ev.ListingID)
	}
	return r.engine.SyncListingSubscription(ctx, sub)
}

// ApplyRenewal processes a renewal payment event: flips the subscription
// status, records the payment idempotently and converges the listing.
func (r *Reconciler) ApplyRenewal(ctx context.Context, ev PaymentEvent) error {
	if ev.ProviderSubscriptionID == "" {
		return fmt.Errorf("payment event %s carries no subscription id", ev.EventID)
	}

	sub, err := r.subs.GetByProviderID(ev.Provider, ev.ProviderSubscriptionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// Renewal outran the subscription.created event; create the row now,
		// the full state arrives with the next subscription event.
		sub = &models.Subscription{
			UserID:         ev.UserID,
			PaymentMethod:  ev.Provider,
			SubscriptionID: ev.ProviderSubscriptionID,
		}
	}

	if ev.Succeeded {
		sub.Status = models.SubscriptionStatusActive
	} else {
		sub.Status = models.SubscriptionStatusPastDue
	}
	if err := r.subs.UpsertByProviderID(sub); err != nil {
		return err
	}

	if ev.Succeeded && ev.ChargeID != "" {
		if err := r.recordRenewalPayment(sub, ev); err != nil {
			return err
		}
	}

	if !sub.IsLinked() && ev.ListingID != 0 {
		r.lateLink(sub, ev.ListingID)
	}
	return r.engine.SyncListingSubscription(ctx, sub)
}

// recordRenewalPayment creates the payment row for a renewal at most once,
// keyed by the provider charge/sale id.
func (r *Reconciler) recordRenewalPayment(sub *models.Subscription, ev PaymentEvent) error {
	userID := sub.UserID
	if userID == 0 {
		userID = ev.UserID
	}

	now := time.Now()
	payment := &models.Payment{
		UserID:         userID,
		PaymentMethod:  ev.Provider,
		Amount:         models.MajorUnits(ev.AmountMinor),
		Currency:       ev.Currency,
		SubscriptionID: &sub.ID,
		ListingID:      sub.ListingID,
		PaidAt:         &now,
	}
	if ev.Provider == ProviderStripe {
		payment.PaymentIntentID = models.StringPtr(ev.ChargeID)
		payment.Status = models.PaymentStatusSucceeded
	} else {
		payment.PayPalOrderID = models.StringPtr(ev.ChargeID)
		payment.PayPalCaptureID = ev.ChargeID
		payment.Status = models.PaymentStatusCompleted
	}

	created, _, err := r.payments.CreateIfNotExists(payment)
	if err != nil {
		return fmt.Errorf("recording renewal payment %s: %w", ev.ChargeID, err)
	}
	if !created {
		log.Infof("[Billing] renewal payment %s already recorded, skipping", ev.ChargeID)
	}
	return nil
}

// lateLink attaches a listing discovered via event metadata to a
// subscription that predates it. Ownership is re-validated; a mismatch is
// logged and the link skipped, never applied.
func (r *Reconciler) lateLink(sub *models.Subscription, listingID uint) {
	listing, err := r.listings.GetByID(listingID)
	if err != nil {
		log.Warnf("[Billing] late-link: listing %d not found for subscription %s: %v", listingID, sub.SubscriptionID, err)
		return
	}
	if sub.UserID != 0 && listing.UserID != sub.UserID {
		log.Warnf("[Billing] late-link: listing %d owner %d does not match subscription owner %d, skipping",
			listingID, listing.UserID, sub.UserID)
		return
	}

	sub.ListingID = &listing.ID
	if err := r.subs.Update(sub); err != nil {
		log.Errorf("[Billing] late-link: updating subscription %s failed: %v", sub.SubscriptionID, err)
		return
	}
	if err := r.listings.UpdateFields(listing.ID, map[string]interface{}{"subscription_id": sub.ID}); err != nil {
		log.Errorf("[Billing] late-link: updating listing %d failed: %v", listing.ID, err)
	}
}

func (r *Reconciler) applyStripeSubscription(ctx context.Context, event stripe.Event, forcedStatus string) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("parsing stripe subscription payload: %w", err)
	}

	status := MapStripeStatus(string(stripeSub.Status))
	if forcedStatus != "" {
		status = forcedStatus
	}

	ev := SubscriptionEvent{
		Provider:               ProviderStripe,
		EventID:                event.ID,
		EventType:              string(event.Type),
		ProviderSubscriptionID: stripeSub.ID,
		Status:                 status,
		CancelAtPeriodEnd:      stripeSub.CancelAtPeriodEnd,
		CurrentPeriodStart:     unixTime(stripeSub.CurrentPeriodStart),
		CurrentPeriodEnd:       unixTime(stripeSub.CurrentPeriodEnd),
		CanceledAt:             unixTime(stripeSub.CanceledAt),
		UserID:                 metaUint(stripeSub.Metadata, "user_id"),
		ListingID:              metaUint(stripeSub.Metadata, "listing_id"),
		IncludesFeatured:       stripeSub.Metadata["includes_featured"] == "true",
		Currency:               string(stripeSub.Currency),
	}
	if stripeSub.Items != nil {
		for _, item := range stripeSub.Items.Data {
			if item.Price != nil {
				if ev.PlanID == "" {
					ev.PlanID = item.Price.ID
				}
				ev.AmountMinor += item.Price.UnitAmount
			}
		}
	}
	return r.ApplySubscription(ctx, ev)
}

func (r *Reconciler) applyStripeInvoice(ctx context.Context, event stripe.Event, succeeded bool) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("parsing stripe invoice payload: %w", err)
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		log.Infof("[Billing] stripe invoice %s has no subscription, acking", invoice.ID)
		return nil
	}

	chargeID := invoice.ID
	if invoice.PaymentIntent != nil && invoice.PaymentIntent.ID != "" {
		chargeID = invoice.PaymentIntent.ID
	}

	ev := PaymentEvent{
		Provider:               ProviderStripe,
		EventID:                event.ID,
		EventType:              string(event.Type),
		ProviderSubscriptionID: invoice.Subscription.ID,
		ChargeID:               chargeID,
		AmountMinor:            invoice.AmountPaid,
		Currency:               string(invoice.Currency),
		UserID:                 metaUint(invoice.Metadata, "user_id"),
		ListingID:              metaUint(invoice.Metadata, "listing_id"),
		Succeeded:              succeeded,
	}
	if !succeeded {
		ev.AmountMinor = invoice.AmountDue
	}
	return r.ApplyRenewal(ctx, ev)
}

func (r *Reconciler) applyPayPalSubscription(ctx context.Context, event *PayPalWebhookEvent, forcedStatus string) error {
	var resource PayPalSubscriptionResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("parsing paypal subscription resource: %w", err)
	}

	status := MapPayPalStatus(resource.Status)
	if forcedStatus != "" {
		status = forcedStatus
	}

	userID, listingID := ParseCustomID(resource.CustomID)
	ev := SubscriptionEvent{
		Provider:               ProviderPayPal,
		EventID:                event.ID,
		EventType:              event.EventType,
		ProviderSubscriptionID: resource.ID,
		Status:                 status,
		PlanID:                 resource.PlanID,
		CurrentPeriodStart:     resource.StartTime,
		CurrentPeriodEnd:       resource.BillingInfo.NextBillingTime,
		UserID:                 userID,
		ListingID:              listingID,
	}
	if status == models.SubscriptionStatusCancelled && resource.StatusUpdateTime != nil {
		ev.CanceledAt = resource.StatusUpdateTime
	}
	if v, ok := resource.BillingInfo.LastPayment.Amount.MinorUnits(); ok {
		ev.AmountMinor = v
		ev.Currency = resource.BillingInfo.LastPayment.Amount.CurrencyString()
	}
	return r.ApplySubscription(ctx, ev)
}

func (r *Reconciler) applyPayPalSale(ctx context.Context, event *PayPalWebhookEvent, succeeded bool) error {
	var resource PayPalSaleResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return fmt.Errorf("parsing paypal sale resource: %w", err)
	}
	if resource.BillingAgreementID == "" {
		log.Infof("[Billing] paypal sale %s has no billing agreement, acking", resource.ID)
		return nil
	}

	userID, listingID := ParseCustomID(resource.CustomID)
	ev := PaymentEvent{
		Provider:               ProviderPayPal,
		EventID:                event.ID,
		EventType:              event.EventType,
		ProviderSubscriptionID: resource.BillingAgreementID,
		ChargeID:               resource.ID,
		UserID:                 userID,
		ListingID:              listingID,
		Succeeded:              succeeded,
	}
	if v, ok := resource.Amount.MinorUnits(); ok {
		ev.AmountMinor = v
		ev.Currency = resource.Amount.CurrencyString()
	}
	return r.ApplyRenewal(ctx, ev)
}

func (r *Reconciler) recordEvent(provider, eventID, eventType, payload string) (bool, *models.WebhookEvent, error) {
	return r.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     payload,
		SignatureValid:  true,
	})
}

func (r *Reconciler) markProcessed(eventID uint, procErr error) {
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	if err := r.events.MarkProcessed(eventID, msg); err != nil {
		log.Errorf("[Billing] marking webhook event %d processed failed: %v", eventID, err)
	}
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func metaUint(meta map[string]string, key string) uint {
	if meta == nil {
		return 0
	}
	var v uint
	if _, err := fmt.Sscanf(meta[key], "%d", &v); err != nil {
		return 0
	}
	return v
}
