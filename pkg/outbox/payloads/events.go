package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

// BookingRequestedEvent signals a new pending booking with an active hold.
type BookingRequestedEvent struct {
	BookingID uuid.UUID           `json:"booking_id"`
	SiteID    uuid.UUID           `json:"site_id"`
	GuestID   uuid.UUID           `json:"guest_id"`
	CheckIn   time.Time           `json:"check_in"`
	CheckOut  time.Time           `json:"check_out"`
	Units     int                 `json:"units"`
	Method    enums.PaymentMethod `json:"method"`
}

// BookingConfirmedEvent is emitted when payment settles for a booking.
type BookingConfirmedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	SiteID      uuid.UUID `json:"site_id"`
	GuestID     uuid.UUID `json:"guest_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BookingCancelledEvent is emitted when a booking releases its window.
type BookingCancelledEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	SiteID      uuid.UUID `json:"site_id"`
	GuestID     uuid.UUID `json:"guest_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderRequestedEvent signals a new pending gear order with stock reserved.
type OrderRequestedEvent struct {
	OrderID uuid.UUID           `json:"order_id"`
	GuestID uuid.UUID           `json:"guest_id"`
	Items   int                 `json:"items"`
	Method  enums.PaymentMethod `json:"method"`
}

// OrderPaidEvent is emitted when payment settles for an order.
type OrderPaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	GuestID     uuid.UUID `json:"guest_id"`
	AmountCents int       `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// OrderCancelledEvent is emitted when an order releases its stock.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	GuestID     uuid.UUID `json:"guest_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// HoldExpiredEvent describes a hold reaped by the expiry sweeper.
type HoldExpiredEvent struct {
	HoldID    uuid.UUID      `json:"hold_id"`
	Kind      enums.HoldKind `json:"kind"`
	TargetID  uuid.UUID      `json:"target_id"`
	ExpiredAt time.Time      `json:"expired_at"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed payment.
type PaymentFailedEvent struct {
	PaymentIntentID uuid.UUID               `json:"payment_intent_id"`
	TargetType      enums.PaymentTargetType `json:"target_type"`
	TargetID        uuid.UUID               `json:"target_id"`
	Reason          string                  `json:"reason,omitempty"`
}

// PaymentSucceededEvent is emitted when the gateway confirms settlement.
type PaymentSucceededEvent struct {
	PaymentIntentID uuid.UUID               `json:"payment_intent_id"`
	TargetType      enums.PaymentTargetType `json:"target_type"`
	TargetID        uuid.UUID               `json:"target_id"`
	AmountCents     int                     `json:"amount_cents"`
	SucceededAt     time.Time               `json:"succeeded_at"`
}
