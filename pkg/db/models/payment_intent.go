package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

// PaymentIntent tracks gateway payment progress for a booking or order.
// GatewayOrderCode is the external reference the gateway echoes back in
// webhook notifications.
type PaymentIntent struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TargetType       enums.PaymentTargetType `gorm:"column:target_type;type:payment_target_type;not null"`
	TargetID         uuid.UUID               `gorm:"column:target_id;type:uuid;not null;index"`
	Method           enums.PaymentMethod     `gorm:"column:method;type:payment_method;not null;default:'card'"`
	Status           enums.PaymentStatus     `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AmountCents      int                     `gorm:"column:amount_cents;not null"`
	GatewayOrderCode string                  `gorm:"column:gateway_order_code;not null;uniqueIndex"`
	CheckoutURL      *string                 `gorm:"column:checkout_url"`
	FailureReason    *string                 `gorm:"column:failure_reason"`
	SucceededAt      *time.Time              `gorm:"column:succeeded_at"`
	FailedAt         *time.Time              `gorm:"column:failed_at"`
	ExpiredAt        *time.Time              `gorm:"column:expired_at"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
