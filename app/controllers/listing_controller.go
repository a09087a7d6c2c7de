package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/apperr"
	"github.com/FinnKramer/PawMarket/internal/pkg/lifecycle"
	"github.com/FinnKramer/PawMarket/internal/pkg/metrics/counter"
	"github.com/FinnKramer/PawMarket/internal/pkg/usercontext"
)

var validate = validator.New()

type createListingRequest struct {
	Type         string `json:"type"`
	Title        string `json:"title" validate:"required,min=3,max=255"`
	Description  string `json:"description" validate:"max=10000"`
	BreedID      uint   `json:"breed_id"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	Availability string `json:"availability"`
}

type updateListingRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description    *string `json:"description" validate:"omitempty,max=10000"`
	BreedID        *uint   `json:"breed_id"`
	PriceCents     *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	Availability   *string `json:"availability"`
	Status         *string `json:"status"`
	SubscriptionID *uint   `json:"subscription_id"`
}

// HandleCreateListing creates a new listing for the logged-in user.
func HandleCreateListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Login required"})
	}

	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	listing, err := listingEngine.CreateListing(c.Context(), userCtx.UserID, lifecycle.CreateListingInput{
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		BreedID:      req.BreedID,
		PriceCents:   req.PriceCents,
		Currency:     req.Currency,
		Availability: req.Availability,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(listing)
}

// HandleGetListing returns a single listing. Inactive listings are only
// visible to their owner and admins.
func HandleGetListing(c *fiber.Ctx) error {
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	userCtx := usercontext.GetUserContext(c)
	visible := listing.Status == models.ListingStatusActive && listing.IsActive
	if !visible && listing.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Listing not found"})
	}

	// Counting failures never block the read path.
	if visible && listing.UserID != userCtx.UserID {
		_ = counter.AddListingView(listing.ID)
	}

	photos, err := repository.GetGlobalRepositories().Listing.GetPhotos(listing.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load photos"})
	}

	return c.JSON(fiber.Map{"listing": listing, "photos": photos})
}

// HandleBrowseListings returns the public feed of active listings.
func HandleBrowseListings(c *fiber.Ctx) error {
	offset, limit := paginationParams(c)
	listings, err := repository.GetGlobalRepositories().Listing.ListPublic(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load listings"})
	}
	return c.JSON(fiber.Map{"listings": listings, "offset": offset, "limit": limit})
}

// HandleMyListings returns every listing of the logged-in user.
func HandleMyListings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := paginationParams(c)
	listings, err := repository.GetGlobalRepositories().Listing.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load listings"})
	}
	return c.JSON(fiber.Map{"listings": listings, "offset": offset, "limit": limit})
}

// HandleUpdateListing applies a partial update to an owned listing.
func HandleUpdateListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req updateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	updated, err := listingEngine.UpdateListing(c.Context(), userCtx.UserID, listing.ID, lifecycle.UpdateListingInput{
		Title:          req.Title,
		Description:    req.Description,
		BreedID:        req.BreedID,
		PriceCents:     req.PriceCents,
		Availability:   req.Availability,
		Status:         req.Status,
		SubscriptionID: req.SubscriptionID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// HandlePublishListing submits a draft for moderation.
func HandlePublishListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	updated, err := listingEngine.PublishListing(c.Context(), userCtx.UserID, listing.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// HandleDeleteListing soft-deletes an owned listing. Deletion is terminal.
func HandleDeleteListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := listingEngine.DeleteListing(c.Context(), userCtx.UserID, listing.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// HandleReactivateListing revives an expired listing against an active
// subscription owned by the same user.
func HandleReactivateListing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		SubscriptionID uint `json:"subscription_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	updated, err := listingEngine.ReactivateListing(c.Context(), userCtx.UserID, listing.ID, req.SubscriptionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

func listingByUUIDParam(c *fiber.Ctx) (*models.Listing, error) {
	uuid := c.Params("uuid")
	listing, err := repository.GetGlobalRepositories().Listing.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("listing %s not found", uuid)
		}
		return nil, err
	}
	return listing, nil
}

// HandleListBreeds returns the breed lookup table for listing forms.
func HandleListBreeds(c *fiber.Ctx) error {
	breeds, err := repository.GetGlobalRepositories().Breed.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load breeds"})
	}
	return c.JSON(fiber.Map{"breeds": breeds})
}

func paginationParams(c *fiber.Ctx) (offset, limit int) {
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	limit, _ = strconv.Atoi(c.Query("limit", "25"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	return offset, limit
}
