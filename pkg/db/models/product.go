package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a rentable or sellable gear listing.
type Product struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID    uuid.UUID      `gorm:"column:owner_id;type:uuid;not null"`
	SKU        string         `gorm:"column:sku;not null"`
	Name       string         `gorm:"column:name;not null"`
	PriceCents int            `gorm:"column:price_cents;not null"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	Inventory  *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
