package controllers

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/FinnKramer/PawMarket/app/models"
	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/photostore"
	"github.com/FinnKramer/PawMarket/internal/pkg/usercontext"
)

const maxPhotosPerListing = 10

var allowedPhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

// HandleUploadListingPhoto stores a photo for an owned listing in S3 and
// records the reference.
func HandleUploadListingPhoto(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if listing.UserID != userCtx.UserID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Listing belongs to another user"})
	}
	if photoClient == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Photo storage is not configured"})
	}

	repo := repository.GetGlobalRepositories().Listing
	existing, err := repo.GetPhotos(listing.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load photos"})
	}
	if len(existing) >= maxPhotosPerListing {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Photo limit reached"})
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing photo file"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedPhotoExtensions[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unsupported file type"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to read upload"})
	}
	defer file.Close()

	now := time.Now()
	objectKey := photoClient.Config().GetObjectKey(
		fmt.Sprintf("%s-%d", listing.UUID, now.UnixNano()),
		ext, now.Year(), int(now.Month()),
	)

	result, err := photoClient.Upload(c.Context(), objectKey, file, photostore.ContentTypeForExtension(ext))
	if err != nil {
		log.Errorf("[Photo] upload for listing %d failed: %v", listing.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Upload failed"})
	}

	photo := &models.ListingPhoto{
		ListingID: listing.ID,
		ObjectKey: result.ObjectKey,
		URL:       result.URL,
		Position:  len(existing),
	}
	if err := repo.AddPhoto(photo); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save photo"})
	}

	return c.Status(fiber.StatusCreated).JSON(photo)
}

// HandleDeleteListingPhoto removes a photo from S3 and the database.
func HandleDeleteListingPhoto(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	listing, err := listingByUUIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if listing.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Listing belongs to another user"})
	}

	photoID, err := strconv.ParseUint(c.Params("photoID"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid photo id"})
	}

	repo := repository.GetGlobalRepositories().Listing
	photos, err := repo.GetPhotos(listing.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load photos"})
	}

	var target *models.ListingPhoto
	for i := range photos {
		if photos[i].ID == uint(photoID) {
			target = &photos[i]
			break
		}
	}
	if target == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Photo not found"})
	}

	if photoClient != nil {
		if err := photoClient.DeleteFile(c.Context(), target.ObjectKey); err != nil {
			log.Warnf("[Photo] deleting object %s failed: %v", target.ObjectKey, err)
		}
	}
	if err := repo.DeletePhoto(target.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete photo"})
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}
