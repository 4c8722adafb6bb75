package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBooking       OutboxAggregateType = "booking"
	AggregateOrder         OutboxAggregateType = "order"
	AggregateHold          OutboxAggregateType = "hold"
	AggregatePaymentIntent OutboxAggregateType = "payment_intent"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregateOrder,
	AggregateHold,
	AggregatePaymentIntent,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBookingRequested  OutboxEventType = "booking_requested"
	EventBookingConfirmed  OutboxEventType = "booking_confirmed"
	EventBookingCancelled  OutboxEventType = "booking_cancelled"
	EventOrderRequested    OutboxEventType = "order_requested"
	EventOrderPaid         OutboxEventType = "order_paid"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventHoldExpired       OutboxEventType = "hold_expired"
	EventHoldReleased      OutboxEventType = "hold_released"
	EventPaymentSucceeded  OutboxEventType = "payment_succeeded"
	EventPaymentFailed     OutboxEventType = "payment_failed"
	EventPaymentExpired    OutboxEventType = "payment_expired"
	EventPaymentUnresolved OutboxEventType = "payment_unresolved"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingRequested,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventOrderRequested,
	EventOrderPaid,
	EventOrderCancelled,
	EventHoldExpired,
	EventHoldReleased,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentExpired,
	EventPaymentUnresolved,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
