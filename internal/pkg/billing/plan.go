package billing

import (
	"strings"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/internal/pkg/env"
)

// Plan describes a purchasable subscription covering one listing slot. Price
// and plan ids are created in the provider dashboards and wired in via env.
type Plan struct {
	Key           string
	StripePriceID string
	PayPalPlanID  string
}

// PlanForListingType resolves the billing plan for a listing type. Unknown
// types fall back to the OTHER plan, mirroring the listing duration fallback.
func PlanForListingType(listingType string) Plan {
	key := planKey(listingType)
	suffix := strings.ToUpper(key)
	return Plan{
		Key:           key,
		StripePriceID: strings.TrimSpace(env.GetEnv("STRIPE_PRICE_"+suffix, "")),
		PayPalPlanID:  strings.TrimSpace(env.GetEnv("PAYPAL_PLAN_"+suffix, "")),
	}
}

// FeaturedAddOnPriceID returns the Stripe price for the featured-placement
// add-on line item, empty when not configured.
func FeaturedAddOnPriceID() string {
	return strings.TrimSpace(env.GetEnv("STRIPE_PRICE_FEATURED", ""))
}

func planKey(listingType string) string {
	switch strings.ToUpper(strings.TrimSpace(listingType)) {
	case models.ListingTypePuppy:
		return "puppy"
	case models.ListingTypeKitten:
		return "kitten"
	case models.ListingTypeAdultDog:
		return "adult_dog"
	case models.ListingTypeAdultCat:
		return "adult_cat"
	default:
		return "other"
	}
}
