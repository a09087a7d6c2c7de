package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/billing"
	"github.com/FinnKramer/PawMarket/internal/pkg/usercontext"
)

// HandleCreateCheckout starts a Stripe subscription checkout for a listing.
// The listing must exist and belong to the caller; its type selects the plan.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		ListingUUID      string `json:"listing_uuid"`
		IncludesFeatured bool   `json:"includes_featured"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	repos := repository.GetGlobalRepositories()
	listing, err := repos.Listing.GetByUUID(req.ListingUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Listing not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load listing"})
	}
	if listing.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Listing belongs to another user"})
	}
	if listing.IsDeleted() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Deleted listings cannot be subscribed"})
	}

	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	if stripeProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Payments are not configured"})
	}

	plan := billing.PlanForListingType(listing.Type)
	if plan.StripePriceID == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "No plan configured for this listing type"})
	}

	in := billing.CheckoutInput{
		User:      user,
		ListingID: listing.ID,
		PriceID:   plan.StripePriceID,
	}
	if req.IncludesFeatured {
		in.FeaturedPriceID = billing.FeaturedAddOnPriceID()
	}

	url, err := stripeProvider.CreateCheckoutSession(c.Context(), in)
	if err != nil {
		log.Errorf("[Billing] checkout for listing %d failed: %v", listing.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Checkout could not be started"})
	}

	return c.JSON(fiber.Map{"checkout_url": url})
}

// HandleListSubscriptions returns the caller's subscriptions.
func HandleListSubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	subs, err := repository.GetGlobalRepositories().Subscription.ListByUser(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscriptions"})
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleCancelSubscription cancels a subscription at the provider. The local
// status flips when the provider's cancellation webhook arrives; we never
// pretend to know the outcome before the provider confirms it.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req struct {
		SubscriptionID uint `json:"subscription_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	sub, err := repository.GetGlobalRepositories().Subscription.GetByID(req.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Subscription not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}
	if sub.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Subscription belongs to another user"})
	}

	switch sub.PaymentMethod {
	case models.PaymentMethodStripe:
		if stripeProvider == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Payments are not configured"})
		}
		err = stripeProvider.CancelSubscription(c.Context(), sub.SubscriptionID)
	case models.PaymentMethodPayPal:
		err = paypalClient.CancelSubscription(c.Context(), sub.SubscriptionID, "Cancelled by user")
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown payment method"})
	}
	if err != nil {
		log.Errorf("[Billing] cancelling subscription %d failed: %v", sub.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Cancellation failed"})
	}

	return c.JSON(fiber.Map{"status": "cancellation_requested"})
}
