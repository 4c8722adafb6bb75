package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

// Hold records a claimed slice of capacity awaiting payment. Terminal
// transitions are guarded on status so expiry and confirmation race safely.
type Hold struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Kind       enums.HoldKind          `gorm:"column:kind;type:hold_kind;not null"`
	Status     enums.HoldStatus        `gorm:"column:status;type:hold_status;not null;default:'pending';index"`
	GuestID    uuid.UUID               `gorm:"column:guest_id;type:uuid;not null"`
	TargetType enums.PaymentTargetType `gorm:"column:target_type;type:payment_target_type;not null"`
	TargetID   uuid.UUID               `gorm:"column:target_id;type:uuid;not null;index"`

	// Site window fields, set when Kind is site_window.
	SiteID   *uuid.UUID `gorm:"column:site_id;type:uuid"`
	CheckIn  *time.Time `gorm:"column:check_in;type:date"`
	CheckOut *time.Time `gorm:"column:check_out;type:date"`
	Units    int        `gorm:"column:units;not null;default:0"`

	// Product stock fields, set when Kind is product_stock.
	ProductID *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Qty       int        `gorm:"column:qty;not null;default:0"`

	ExpiresAt   time.Time  `gorm:"column:expires_at;not null;index"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	ReleasedAt  *time.Time `gorm:"column:released_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
