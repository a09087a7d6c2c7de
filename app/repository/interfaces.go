package repository

import (
	"time"

	"github.com/FinnKramer/PawMarket/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUUID(uuid string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// ListingRepository defines the interface for listing-related database operations
type ListingRepository interface {
	Create(listing *models.Listing) error
	GetByID(id uint) (*models.Listing, error)
	GetByUUID(uuid string) (*models.Listing, error)
	GetBySubscriptionID(subscriptionID uint) (*models.Listing, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Listing, error)
	GetByStatus(status string, offset, limit int) ([]models.Listing, error)
	ListPublic(offset, limit int) ([]models.Listing, error)
	Update(listing *models.Listing) error
	UpdateFields(id uint, fields map[string]interface{}) error
	ListExpiredActive(asOf time.Time, limit int) ([]models.Listing, error)
	CountByStatus(status string) (int64, error)
	GetPhotos(listingID uint) ([]models.ListingPhoto, error)
	AddPhoto(photo *models.ListingPhoto) error
	DeletePhoto(id uint) error
}

// SubscriptionRepository defines the interface for subscription persistence.
// UpsertByProviderID is the idempotency anchor for webhook processing: exactly
// one row per provider subscription id.
type SubscriptionRepository interface {
	UpsertByProviderID(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByProviderID(paymentMethod, providerSubscriptionID string) (*models.Subscription, error)
	GetByListingID(listingID uint) (*models.Subscription, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	ListUnlinked(olderThan time.Time, limit int) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
}

// PaymentRepository defines the interface for payment persistence.
// CreateIfNotExists dedupes by the provider-specific id so webhook replays
// never produce a second row.
type PaymentRepository interface {
	CreateIfNotExists(payment *models.Payment) (bool, *models.Payment, error)
	GetByID(id uint) (*models.Payment, error)
	GetByPaymentIntentID(paymentIntentID string) (*models.Payment, error)
	GetByPayPalOrderID(paypalOrderID string) (*models.Payment, error)
	ListBySubscription(subscriptionID uint) ([]models.Payment, error)
	Update(payment *models.Payment) error
}

// WebhookEventRepository stores inbound provider events for deduplication.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// BreedRepository resolves breed display data for notifications.
type BreedRepository interface {
	GetByID(id uint) (*models.Breed, error)
	List() ([]models.Breed, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Listing      ListingRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
	WebhookEvent WebhookEventRepository
	Breed        BreedRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Listing:      NewListingRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Breed:        NewBreedRepository(db),
	}
}
