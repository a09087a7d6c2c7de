package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
)

// HandleAdminPendingListings returns the moderation queue, oldest first.
func HandleAdminPendingListings(c *fiber.Ctx) error {
	offset, limit := paginationParams(c)
	repo := repository.GetGlobalRepositories().Listing

	listings, err := repo.GetByStatus(models.ListingStatusPendingReview, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load review queue"})
	}
	total, err := repo.CountByStatus(models.ListingStatusPendingReview)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count review queue"})
	}

	return c.JSON(fiber.Map{"listings": listings, "total": total, "offset": offset, "limit": limit})
}

// HandleAdminApproveListing approves a listing in review, making it publicly
// visible and notifying the owner.
func HandleAdminApproveListing(c *fiber.Ctx) error {
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	updated, err := listingEngine.ApproveListing(c.Context(), listing.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// HandleAdminRejectListing rejects a listing in review with an optional
// reason.
func HandleAdminRejectListing(c *fiber.Ctx) error {
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	updated, err := listingEngine.RejectListing(c.Context(), listing.ID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}
