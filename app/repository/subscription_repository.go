package repository

import (
	"time"

	"github.com/FinnKramer/PawMarket/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// UpsertByProviderID creates or updates the row keyed by payment method +
// provider subscription id. Webhooks for the same subscription may arrive in
// any order; the provider resends full state, so last write wins on the
// updatable columns.
func (r *subscriptionRepository) UpsertByProviderID(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_method"},
			{Name: "subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"includes_featured",
			"amount",
			"currency",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID and listing link are populated after upsert. The listing_id
	// column is deliberately not in the update set: a late-linked listing
	// must survive subsequent status-only webhooks.
	return r.db.Where("payment_method = ? AND subscription_id = ?", sub.PaymentMethod, sub.SubscriptionID).
		First(sub).Error
}

func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByProviderID(paymentMethod, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("payment_method = ? AND subscription_id = ?", paymentMethod, providerSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByListingID(listingID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("listing_id = ?", listingID).Order("updated_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

// ListUnlinked returns subscriptions that never found their listing. Input to
// the orphan-link reconciliation sweep.
func (r *subscriptionRepository) ListUnlinked(olderThan time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("listing_id IS NULL AND created_at < ?", olderThan).
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}
