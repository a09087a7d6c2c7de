package repository

import (
	"github.com/FinnKramer/PawMarket/app/models"
	"gorm.io/gorm"
)

// breedRepository implements the BreedRepository interface
type breedRepository struct {
	db *gorm.DB
}

// NewBreedRepository creates a new breed repository instance
func NewBreedRepository(db *gorm.DB) BreedRepository {
	return &breedRepository{db: db}
}

func (r *breedRepository) List() ([]models.Breed, error) {
	var breeds []models.Breed
	err := r.db.Order("species, name").Find(&breeds).Error
	return breeds, err
}

func (r *breedRepository) GetByID(id uint) (*models.Breed, error) {
	var breed models.Breed
	err := r.db.First(&breed, id).Error
	if err != nil {
		return nil, err
	}
	return &breed, nil
}
