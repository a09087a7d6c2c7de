package billing

import "time"

// Provider identifiers as stored on webhook events and payments.
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// SubscriptionEvent is the provider-agnostic shape of a subscription webhook
// after parsing and status mapping. Both providers funnel into it so the
// reconciler has a single code path.
type SubscriptionEvent struct {
	Provider               string
	EventID                string
	EventType              string
	ProviderSubscriptionID string
	Status                 string // canonical, already mapped
	PlanID                 string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	CanceledAt             *time.Time
	UserID                 uint
	ListingID              uint
	IncludesFeatured       bool
	AmountMinor            int64
	Currency               string
}

// PaymentEvent is the normalized shape of a renewal payment webhook
// (invoice.payment_succeeded / PAYMENT.SALE.COMPLETED and their failure
// variants). ChargeID is the idempotency key for the payment row.
type PaymentEvent struct {
	Provider               string
	EventID                string
	EventType              string
	ProviderSubscriptionID string
	ChargeID               string
	AmountMinor            int64
	Currency               string
	UserID                 uint
	ListingID              uint
	Succeeded              bool
}
