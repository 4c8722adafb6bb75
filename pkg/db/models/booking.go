package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

// Booking represents a guest's stay at a site over a half-open date window.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SiteID        uuid.UUID           `gorm:"column:site_id;type:uuid;not null;index"`
	GuestID       uuid.UUID           `gorm:"column:guest_id;type:uuid;not null;index"`
	Status        enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending_payment'"`
	CheckIn       time.Time           `gorm:"column:check_in;type:date;not null"`
	CheckOut      time.Time           `gorm:"column:check_out;type:date;not null"`
	Units         int                 `gorm:"column:units;not null;default:1"`
	TotalCents    int                 `gorm:"column:total_cents;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	ConfirmedAt   *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
