package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/customer"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/subscription"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/internal/pkg/env"
)

// StripeProvider wraps the Stripe SDK for subscription checkout, lookup and
// cancellation. The SDK uses a package-global API key, so construction sets
// it once and fails hard when it is missing.
type StripeProvider struct {
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func NewStripeProviderFromEnv() (*StripeProvider, error) {
	key := strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	if key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	stripe.Key = key

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	return &StripeProvider{
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		SuccessURL:    base + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     base + "/billing/cancelled",
	}, nil
}

// CheckoutInput carries everything needed to start a subscription checkout
// for a listing. FeaturedPriceID is added as a second line item when the
// user opted into featured placement.
type CheckoutInput struct {
	User            *models.User
	ListingID       uint
	PriceID         string
	FeaturedPriceID string
}

// CreateCheckoutSession opens a Stripe Checkout session in subscription mode.
// user_id and listing_id ride along as subscription metadata so the webhook
// reconciler can link the resulting subscription back to the listing.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	if in.User == nil || in.User.ID == 0 {
		return "", errors.New("checkout requires a user")
	}
	if strings.TrimSpace(in.PriceID) == "" {
		return "", errors.New("checkout requires a price id")
	}

	lineItems := []*stripe.CheckoutSessionLineItemParams{
		{
			Price:    stripe.String(in.PriceID),
			Quantity: stripe.Int64(1),
		},
	}
	includesFeatured := strings.TrimSpace(in.FeaturedPriceID) != ""
	if includesFeatured {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(in.FeaturedPriceID),
			Quantity: stripe.Int64(1),
		})
	}

	metadata := map[string]string{
		"user_id":           fmt.Sprintf("%d", in.User.ID),
		"includes_featured": fmt.Sprintf("%t", includesFeatured),
	}
	if in.ListingID != 0 {
		metadata["listing_id"] = fmt.Sprintf("%d", in.ListingID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(in.User.Email),
		SuccessURL:    stripe.String(p.SuccessURL),
		CancelURL:     stripe.String(p.CancelURL),
		LineItems:     lineItems,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

// EnsureCustomer creates a Stripe customer for the user if one is needed and
// returns its id.
func (p *StripeProvider) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.ID == 0 {
		return "", errors.New("customer requires a user")
	}
	params := &stripe.CustomerParams{
		Name:  stripe.String(user.Name),
		Email: stripe.String(user.Email),
	}
	params.Context = ctx
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("creating stripe customer: %w", err)
	}
	return c.ID, nil
}

// GetSubscription fetches the current provider state of a subscription.
func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(id, params)
}

// CancelSubscription cancels a subscription at period end, matching the
// PayPal flow where paid-for time is never cut short.
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	_, err := subscription.Update(id, params)
	if err != nil {
		return fmt.Errorf("cancelling stripe subscription %s: %w", id, err)
	}
	return nil
}

// GetPaymentIntent fetches a payment intent, used when reconciling one-off
// listing payments.
func (p *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripe.PaymentIntent, error) {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return nil, errors.New("payment intent id is required")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

// VerifyWebhook checks the Stripe-Signature header and parses the event.
func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	if p.WebhookSecret == "" {
		return stripe.Event{}, errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	}
	return webhook.ConstructEvent(payload, signatureHeader, p.WebhookSecret)
}
