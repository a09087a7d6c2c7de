package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/internal/pkg/env"
)

func TestPlanForListingType(t *testing.T) {
	env.Env = map[string]string{
		"STRIPE_PRICE_PUPPY":     "price_puppy",
		"PAYPAL_PLAN_PUPPY":      "P-PUPPY",
		"STRIPE_PRICE_ADULT_CAT": "price_adult_cat",
		"STRIPE_PRICE_OTHER":     "price_other",
	}
	t.Cleanup(func() { env.Env = nil })

	plan := PlanForListingType(models.ListingTypePuppy)
	assert.Equal(t, "puppy", plan.Key)
	assert.Equal(t, "price_puppy", plan.StripePriceID)
	assert.Equal(t, "P-PUPPY", plan.PayPalPlanID)

	plan = PlanForListingType(models.ListingTypeAdultCat)
	assert.Equal(t, "adult_cat", plan.Key)
	assert.Equal(t, "price_adult_cat", plan.StripePriceID)
	assert.Empty(t, plan.PayPalPlanID)

	// unknown types resolve to the OTHER plan
	plan = PlanForListingType("HAMSTER")
	assert.Equal(t, "other", plan.Key)
	assert.Equal(t, "price_other", plan.StripePriceID)
}

func TestFeaturedAddOnPriceID(t *testing.T) {
	env.Env = map[string]string{"STRIPE_PRICE_FEATURED": " price_featured "}
	t.Cleanup(func() { env.Env = nil })

	assert.Equal(t, "price_featured", FeaturedAddOnPriceID())
}
