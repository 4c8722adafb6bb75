package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

// Order represents a gear purchase with one or more line items.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	GuestID       uuid.UUID           `gorm:"column:guest_id;type:uuid;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	SubtotalCents int                 `gorm:"column:subtotal_cents;not null"`
	TotalCents    int                 `gorm:"column:total_cents;not null"`
	Items         []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
