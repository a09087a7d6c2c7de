package models

import "time"

// Payment methods supported for recurring billing.
const (
	PaymentMethodStripe = "stripe"
	PaymentMethodPayPal = "paypal"
)

// Canonical subscription statuses. Provider vocabularies (Stripe, PayPal) are
// normalized into this set by the billing package before anything else reads
// the status.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusCancelled         = "cancelled"
	SubscriptionStatusExpired           = "expired"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
)

// InactiveSubscriptionStatuses are the canonical statuses that always force a
// linked listing to expired and invisible. Referenced everywhere instead of
// re-listing members ad hoc.
var InactiveSubscriptionStatuses = map[string]struct{}{
	SubscriptionStatusCancelled:         {},
	SubscriptionStatusPastDue:           {},
	SubscriptionStatusUnpaid:            {},
	SubscriptionStatusIncompleteExpired: {},
}

// IsInactiveSubscriptionStatus reports membership in the inactive set.
func IsInactiveSubscriptionStatus(status string) bool {
	_, ok := InactiveSubscriptionStatuses[status]
	return ok
}

// Subscription mirrors a provider billing agreement (Stripe subscription or
// PayPal billing subscription) and links it to at most one listing. Exactly
// one row exists per provider subscription id; webhook processing upserts by
// that key.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;index" json:"user_id"`
	PaymentMethod      string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_provider_subid,unique,priority:1" json:"payment_method"`
	SubscriptionID     string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_provider_subid,unique,priority:2" json:"subscription_id"`
	PlanID             string     `gorm:"type:varchar(191)" json:"plan_id"`
	Status             string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	CurrentPeriodStart *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt         *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	ListingID          *uint      `gorm:"index" json:"listing_id,omitempty"`
	IncludesFeatured   bool       `gorm:"default:false" json:"includes_featured"`
	Amount             float64    `gorm:"type:decimal(10,2);default:0" json:"amount"`
	Currency           string     `gorm:"type:varchar(8);default:'EUR'" json:"currency"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLinked reports whether the subscription already knows its listing.
func (s *Subscription) IsLinked() bool {
	return s.ListingID != nil && *s.ListingID != 0
}
