package repository

import (
	"time"

	"github.com/FinnKramer/PawMarket/app/models"
	"gorm.io/gorm"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(listing *models.Listing) error {
	return r.db.Create(listing).Error
}

func (r *listingRepository) GetByID(id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.First(&listing, id).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetByUUID(uuid string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("uuid = ?", uuid).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetBySubscriptionID(subscriptionID uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetByUserID(userID uint, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (r *listingRepository) GetByStatus(status string, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("status = ?", status).
		Order("created_at ASC").
		Offset(offset).Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (r *listingRepository) ListPublic(offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Where("status = ? AND is_active = ?", models.ListingStatusActive, true).
		Order("published_at DESC").
		Offset(offset).Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (r *listingRepository) Update(listing *models.Listing) error {
	return r.db.Save(listing).Error
}

// UpdateFields applies a partial update without touching other columns.
// Status/is_active convergence writes go through here so they are the last
// write for those fields.
func (r *listingRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&models.Listing{}).Where("id = ?", id).Updates(fields).Error
}

// ListExpiredActive returns listings whose expiry date has passed but that
// are still flagged active. Used by the periodic sweep.
func (r *listingRepository) ListExpiredActive(asOf time.Time, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, asOf).
		Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (r *listingRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Listing{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *listingRepository) GetPhotos(listingID uint) ([]models.ListingPhoto, error) {
	var photos []models.ListingPhoto
	err := r.db.Where("listing_id = ?", listingID).Order("position ASC").Find(&photos).Error
	return photos, err
}

func (r *listingRepository) AddPhoto(photo *models.ListingPhoto) error {
	return r.db.Create(photo).Error
}

func (r *listingRepository) DeletePhoto(id uint) error {
	return r.db.Delete(&models.ListingPhoto{}, id).Error
}
