package repository

import (
	"github.com/FinnKramer/PawMarket/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// CreateIfNotExists inserts the payment unless a row with the same provider
// id already exists. Returns (created, stored row, error); the stored row is
// the one in the database either way.
func (r *paymentRepository) CreateIfNotExists(payment *models.Payment) (bool, *models.Payment, error) {
	if err := payment.Validate(); err != nil {
		return false, nil, err
	}

	conflictCol := "payment_intent_id"
	key := payment.ProviderKey()
	if payment.PaymentIntentID == nil || *payment.PaymentIntentID == "" {
		conflictCol = "pay_pal_order_id"
	}

	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: conflictCol}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Payment
	if err := r.db.Where(conflictCol+" = ?", key).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *paymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetByPaymentIntentID(paymentIntentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("payment_intent_id = ?", paymentIntentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetByPayPalOrderID(paypalOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("pay_pal_order_id = ?", paypalOrderID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListBySubscription(subscriptionID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("subscription_id = ?", subscriptionID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) Update(payment *models.Payment) error {
	if err := payment.Validate(); err != nil {
		return err
	}
	return r.db.Save(payment).Error
}
