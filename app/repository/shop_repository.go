package repository

import (
	"github.com/DiveDeskApp/DiveDesk/app/models"
	"gorm.io/gorm"
)

// diveShopRepository implements the DiveShopRepository interface
type diveShopRepository struct {
	db *gorm.DB
}

// NewDiveShopRepository creates a new dive shop repository instance
func NewDiveShopRepository(db *gorm.DB) DiveShopRepository {
	return &diveShopRepository{db: db}
}

// Create creates a new dive shop in the database
func (r *diveShopRepository) Create(shop *models.DiveShop) error {
	return r.db.Create(shop).Error
}

// GetByID retrieves a dive shop by its ID
func (r *diveShopRepository) GetByID(id uint) (*models.DiveShop, error) {
	var shop models.DiveShop
	err := r.db.First(&shop, id).Error
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetBySlug retrieves a dive shop by its public slug
func (r *diveShopRepository) GetBySlug(slug string) (*models.DiveShop, error) {
	var shop models.DiveShop
	err := r.db.Where("slug = ?", slug).First(&shop).Error
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// Update updates an existing dive shop in the database
func (r *diveShopRepository) Update(shop *models.DiveShop) error {
	return r.db.Save(shop).Error
}

// Delete soft-deletes a dive shop by ID
func (r *diveShopRepository) Delete(id uint) error {
	return r.db.Delete(&models.DiveShop{}, id).Error
}

// Count returns the total number of dive shops
func (r *diveShopRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.DiveShop{}).Count(&count).Error
	return count, err
}
