package models

import (
	"errors"
	"strings"
	"time"
)

// Payment statuses as stored locally. Provider statuses are mapped at the
// boundary; "completed" is PayPal's terminal state, "succeeded" Stripe's.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusSucceeded  = "succeeded"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
)

// Payment records one payment attempt: a Stripe PaymentIntent or a PayPal
// order/sale. Exactly one of PaymentIntentID or PayPalOrderID is set; both
// columns are nullable so the unique indexes only bite on real provider ids.
// Amount is stored in major currency units; providers report minor units and
// the conversion happens in the billing package.
type Payment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	PaymentMethod   string     `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentIntentID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"payment_intent_id,omitempty"`
	PayPalOrderID   *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"paypal_order_id,omitempty"`
	PayPalCaptureID string     `gorm:"type:varchar(191);default:''" json:"paypal_capture_id,omitempty"`
	Status          string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Amount          float64    `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	Currency        string     `gorm:"type:varchar(8);default:'EUR'" json:"currency"`
	ListingID       *uint      `gorm:"index" json:"listing_id,omitempty"`
	SubscriptionID  *uint      `gorm:"index" json:"subscription_id,omitempty"`
	PaidAt          *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrPaymentWithoutUser is returned when a payment row is about to be
// persisted without a valid owner. This is a precondition failure, never
// silently defaulted.
var ErrPaymentWithoutUser = errors.New("payment requires a valid user id")

// Validate enforces the mandatory-owner invariant before persistence.
func (p *Payment) Validate() error {
	if p.UserID == 0 {
		return ErrPaymentWithoutUser
	}
	if strings.TrimSpace(p.PaymentMethod) == "" {
		return errors.New("payment requires a payment method")
	}
	if p.ProviderKey() == "" {
		return errors.New("payment requires a provider id")
	}
	return nil
}

// ProviderKey returns the provider-specific id used for idempotent creation.
func (p *Payment) ProviderKey() string {
	if p.PaymentIntentID != nil && *p.PaymentIntentID != "" {
		return *p.PaymentIntentID
	}
	if p.PayPalOrderID != nil && *p.PayPalOrderID != "" {
		return *p.PayPalOrderID
	}
	return ""
}

// MajorUnits converts a provider minor-unit amount (cents) to major units.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// StringPtr is a small helper for the nullable provider id columns.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
