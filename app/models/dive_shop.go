package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// DiveShop is the tenant record that owns webhooks, bookings and courses.
// Shop management (team, settings, public site) lives in the platform's web
// layer; the delivery engine only needs the owning shop and its active flag.
type DiveShop struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Slug      string         `gorm:"uniqueIndex;type:varchar(150)" json:"slug" validate:"required,min=2,max=150"`
	Email     string         `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email,max=200"`
	IsActive  bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *DiveShop) Validate() error {
	v := validator.New()

	return v.Struct(s)
}
