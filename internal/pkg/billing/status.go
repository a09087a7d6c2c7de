package billing

import (
	"strings"

	"github.com/FinnKramer/PawMarket/app/models"
)

// MapStripeStatus normalizes a Stripe subscription status into the canonical
// vocabulary. Unknown values default to active: Stripe only ships additive
// status values and a paid subscription must not be knocked offline by an
// unmapped one.
func MapStripeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return models.SubscriptionStatusActive
	case "canceled":
		return models.SubscriptionStatusCancelled
	case "incomplete":
		return models.SubscriptionStatusIncomplete
	case "incomplete_expired":
		return models.SubscriptionStatusIncompleteExpired
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "unpaid":
		return models.SubscriptionStatusUnpaid
	default:
		return models.SubscriptionStatusActive
	}
}

// MapPayPalStatus normalizes a PayPal billing subscription status. Unknown
// values default to incomplete: PayPal's vocabulary is less stable, so an
// unmapped status must not activate anything.
func MapPayPalStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "APPROVAL_PENDING":
		return models.SubscriptionStatusIncomplete
	case "APPROVED", "ACTIVE":
		return models.SubscriptionStatusActive
	case "SUSPENDED":
		return models.SubscriptionStatusPastDue
	case "CANCELLED":
		return models.SubscriptionStatusCancelled
	case "EXPIRED":
		return models.SubscriptionStatusExpired
	default:
		return models.SubscriptionStatusIncomplete
	}
}
