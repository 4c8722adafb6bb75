package models

import (
	"time"

	"github.com/google/uuid"
)

// CalendarBlock is the per-site per-night occupancy counter. Admission
// increments BookedCount with a conditional update so concurrent writers
// cannot push it past Capacity.
type CalendarBlock struct {
	SiteID      uuid.UUID `gorm:"column:site_id;type:uuid;primaryKey"`
	Night       time.Time `gorm:"column:night;type:date;primaryKey"`
	Capacity    int       `gorm:"column:capacity;not null"`
	BookedCount int       `gorm:"column:booked_count;not null;default:0"`
	// PriceOverrideCents replaces the site base price for this night when set.
	PriceOverrideCents *int      `gorm:"column:price_override_cents"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
