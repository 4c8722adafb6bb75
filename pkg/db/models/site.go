package models

import (
	"time"

	"github.com/google/uuid"
)

// Site represents a bookable camping site listing. Sites group under a
// property; owner blocks apply at the property level.
type Site struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID     uuid.UUID `gorm:"column:property_id;type:uuid;not null;index"`
	OwnerID        uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Capacity       int       `gorm:"column:capacity;not null;default:1"`
	MinNights      int       `gorm:"column:min_nights;not null;default:1"`
	BasePriceCents int       `gorm:"column:base_price_cents;not null"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
