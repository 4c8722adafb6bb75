package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/internal/reservations"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
	"github.com/pitchpoint/pitchpoint-backend/pkg/outbox"
	"github.com/pitchpoint/pitchpoint-backend/pkg/outbox/payloads"
)

// BookingStateStore applies guarded booking transitions inside a caller
// supplied transaction.
type BookingStateStore interface {
	Find(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error)
	MarkConfirmed(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
}

// OrderStateStore applies guarded order transitions inside a caller supplied
// transaction.
type OrderStateStore interface {
	Find(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	ListStalePendingCOD(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventEmitter queues domain events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the reconciliation service.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       TxRunner
	Holds    *reservations.HoldRepository
	Intents  *IntentRepository
	Bookings BookingStateStore
	Orders   OrderStateStore
	Outbox   EventEmitter
}

// Service settles payment intents against their targets. Every mutation runs
// through guarded conditional updates so duplicate notifications, the expiry
// sweeper, and guest cancellations each apply at most once.
type Service struct {
	logg     *logger.Logger
	db       TxRunner
	holds    *reservations.HoldRepository
	intents  *IntentRepository
	bookings BookingStateStore
	orders   OrderStateStore
	outbox   EventEmitter
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Holds == nil || params.Intents == nil {
		return nil, errors.New("hold and intent repositories required")
	}
	if params.Bookings == nil || params.Orders == nil {
		return nil, errors.New("booking and order stores required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		holds:    params.Holds,
		intents:  params.Intents,
		bookings: params.Bookings,
		orders:   params.Orders,
		outbox:   params.Outbox,
		now:      time.Now,
	}, nil
}

// ReconcileParams carry one gateway settlement notification.
type ReconcileParams struct {
	GatewayCode string
	Outcome     enums.PaymentStatus
	Reason      string
}

// ReconcileResult reports what the notification did. Applied is false when an
// earlier notification or the sweeper already settled the intent.
type ReconcileResult struct {
	Intent  *models.PaymentIntent
	Applied bool
}

// Reconcile applies a settlement outcome to the intent identified by its
// gateway order code. Unknown codes return a not-found error the webhook
// surface acknowledges without retry. The guarded transition picks a single
// winner, so the slow path of a duplicate delivery reads the stored intent
// and reports Applied false.
func (s *Service) Reconcile(ctx context.Context, params ReconcileParams) (*ReconcileResult, error) {
	if params.GatewayCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway code required")
	}
	if params.Outcome != enums.PaymentStatusSucceeded && params.Outcome != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outcome must be succeeded or failed")
	}

	var result *ReconcileResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		intents := s.intents.WithTx(tx)
		now := s.now().UTC()

		var reason *string
		if params.Reason != "" {
			reason = &params.Reason
		}
		won, err := intents.MarkTerminalByCode(ctx, params.GatewayCode, params.Outcome, now, reason)
		if err != nil {
			return err
		}
		intent, err := intents.FindByGatewayCode(ctx, params.GatewayCode)
		if err != nil {
			return err
		}
		if !won {
			result = &ReconcileResult{Intent: intent}
			return nil
		}

		if params.Outcome == enums.PaymentStatusSucceeded {
			err = s.settleTarget(ctx, tx, intent, now)
		} else {
			err = s.cancelTarget(ctx, tx, intent.TargetType, intent.TargetID, now, params.Reason)
			if err == nil {
				err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventPaymentFailed,
					AggregateType: enums.AggregatePaymentIntent,
					AggregateID:   intent.ID,
					Data: payloads.PaymentFailedEvent{
						PaymentIntentID: intent.ID,
						TargetType:      intent.TargetType,
						TargetID:        intent.TargetID,
						Reason:          params.Reason,
					},
				})
			}
		}
		if err != nil {
			return err
		}
		result = &ReconcileResult{Intent: intent, Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// settleTarget confirms the holds backing a paid intent and flips the target
// aggregate. A hold the sweeper already expired cannot be confirmed; the money
// settled against capacity that was given back, which is surfaced as a
// payment_unresolved event for operational follow up instead of failing the
// webhook.
func (s *Service) settleTarget(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, now time.Time) error {
	holds := s.holds.WithTx(tx)
	targetHolds, err := holds.FindByTarget(ctx, intent.TargetType, intent.TargetID)
	if err != nil {
		return err
	}

	unresolved := false
	for _, hold := range targetHolds {
		won, err := holds.MarkConfirmed(ctx, hold.ID, now)
		if err != nil {
			return err
		}
		if !won {
			if hold.Status != enums.HoldStatusConfirmed {
				unresolved = true
			}
			continue
		}
		if hold.Kind == enums.HoldKindProductStock && hold.ProductID != nil {
			if err := reservations.ConfirmProductStock(ctx, tx, *hold.ProductID, hold.Qty); err != nil {
				return err
			}
		}
	}
	if unresolved {
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentUnresolved,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   intent.ID,
			Data: payloads.PaymentSucceededEvent{
				PaymentIntentID: intent.ID,
				TargetType:      intent.TargetType,
				TargetID:        intent.TargetID,
				AmountCents:     intent.AmountCents,
				SucceededAt:     now,
			},
		})
	}

	switch intent.TargetType {
	case enums.PaymentTargetBooking:
		booking, err := s.bookings.Find(ctx, tx, intent.TargetID)
		if err != nil {
			return err
		}
		won, err := s.bookings.MarkConfirmed(ctx, tx, booking.ID, now)
		if err != nil {
			return err
		}
		if won {
			err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBookingConfirmed,
				AggregateType: enums.AggregateBooking,
				AggregateID:   booking.ID,
				Data: payloads.BookingConfirmedEvent{
					BookingID:   booking.ID,
					SiteID:      booking.SiteID,
					GuestID:     booking.GuestID,
					ConfirmedAt: now,
				},
			})
			if err != nil {
				return err
			}
		}
	case enums.PaymentTargetOrder:
		order, err := s.orders.Find(ctx, tx, intent.TargetID)
		if err != nil {
			return err
		}
		won, err := s.orders.MarkPaid(ctx, tx, order.ID, now)
		if err != nil {
			return err
		}
		if won {
			err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderPaidEvent{
					OrderID:     order.ID,
					GuestID:     order.GuestID,
					AmountCents: order.TotalCents,
					PaidAt:      now,
				},
			})
			if err != nil {
				return err
			}
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSucceeded,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		Data: payloads.PaymentSucceededEvent{
			PaymentIntentID: intent.ID,
			TargetType:      intent.TargetType,
			TargetID:        intent.TargetID,
			AmountCents:     intent.AmountCents,
			SucceededAt:     now,
		},
	})
}

// cancelTarget is the single release path shared by failed payments, the
// expiry sweeper, and guest cancellation. It releases every pending hold on
// the target, gives the claimed capacity back, and cancels the aggregate.
func (s *Service) cancelTarget(ctx context.Context, tx *gorm.DB, targetType enums.PaymentTargetType, targetID uuid.UUID, now time.Time, reason string) error {
	holds := s.holds.WithTx(tx)
	targetHolds, err := holds.FindByTarget(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	for _, hold := range targetHolds {
		won, err := holds.MarkReleased(ctx, hold.ID, now)
		if err != nil {
			return err
		}
		if !won && hold.Status == enums.HoldStatusConfirmed {
			won, err = holds.ReleaseConfirmed(ctx, hold.ID, now)
			if err != nil {
				return err
			}
		}
		if !won {
			continue
		}
		if err := s.reverseHold(ctx, tx, &hold); err != nil {
			return err
		}
	}
	return s.markTargetCancelled(ctx, tx, targetType, targetID, now, reason)
}

// reverseHold gives back the capacity a hold claimed at admission. The caller
// must have won the hold's terminal transition.
func (s *Service) reverseHold(ctx context.Context, tx *gorm.DB, hold *models.Hold) error {
	switch hold.Kind {
	case enums.HoldKindSiteWindow:
		if hold.SiteID == nil || hold.CheckIn == nil || hold.CheckOut == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "site window hold missing window fields")
		}
		return reservations.ReleaseSiteWindow(ctx, tx, *hold.SiteID, *hold.CheckIn, *hold.CheckOut, hold.Units)
	case enums.HoldKindProductStock:
		if hold.ProductID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "product stock hold missing product id")
		}
		return reservations.ReleaseProductStock(ctx, tx, *hold.ProductID, hold.Qty)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown hold kind "+hold.Kind.String())
	}
}

func (s *Service) markTargetCancelled(ctx context.Context, tx *gorm.DB, targetType enums.PaymentTargetType, targetID uuid.UUID, now time.Time, reason string) error {
	switch targetType {
	case enums.PaymentTargetBooking:
		booking, err := s.bookings.Find(ctx, tx, targetID)
		if err != nil {
			return err
		}
		won, err := s.bookings.MarkCancelled(ctx, tx, booking.ID, now)
		if err != nil || !won {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingCancelled,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Data: payloads.BookingCancelledEvent{
				BookingID:   booking.ID,
				SiteID:      booking.SiteID,
				GuestID:     booking.GuestID,
				CancelledAt: now,
				Reason:      reason,
			},
		})
	case enums.PaymentTargetOrder:
		order, err := s.orders.Find(ctx, tx, targetID)
		if err != nil {
			return err
		}
		won, err := s.orders.MarkCancelled(ctx, tx, order.ID, now)
		if err != nil || !won {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				GuestID:     order.GuestID,
				CancelledAt: now,
				Reason:      reason,
			},
		})
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown payment target "+targetType.String())
	}
}

// ExpireDueHolds reaps pending holds whose deadline passed. Each hold runs in
// its own transaction so one bad row does not stall the batch; errors are
// accumulated and the count of reaped holds returned.
func (s *Service) ExpireDueHolds(ctx context.Context, batchSize int) (int, error) {
	cutoff := s.now().UTC()
	due, err := s.holds.FindExpiredPending(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs error
	for i := range due {
		hold := due[i]
		if err := s.expireHold(ctx, &hold); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
	}
	if s.logg != nil && expired > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{"expired": expired, "due": len(due)})
		s.logg.Info(logCtx, "expired due holds")
	}
	return expired, errs
}

func (s *Service) expireHold(ctx context.Context, hold *models.Hold) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()
		holds := s.holds.WithTx(tx)
		won, err := holds.MarkExpired(ctx, hold.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		if err := s.reverseHold(ctx, tx, hold); err != nil {
			return err
		}

		intents := s.intents.WithTx(tx)
		intent, err := intents.FindByTarget(ctx, hold.TargetType, hold.TargetID)
		if err != nil {
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
				return err
			}
			intent = nil
		}
		if intent != nil {
			intentWon, err := intents.MarkTerminalByID(ctx, intent.ID, enums.PaymentStatusExpired, now, nil)
			if err != nil {
				return err
			}
			if intentWon {
				err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventPaymentExpired,
					AggregateType: enums.AggregatePaymentIntent,
					AggregateID:   intent.ID,
					Data: payloads.PaymentFailedEvent{
						PaymentIntentID: intent.ID,
						TargetType:      intent.TargetType,
						TargetID:        intent.TargetID,
						Reason:          "hold expired",
					},
				})
				if err != nil {
					return err
				}
			}
		}

		if err := s.markTargetCancelled(ctx, tx, hold.TargetType, hold.TargetID, now, "hold expired"); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHoldExpired,
			AggregateType: enums.AggregateHold,
			AggregateID:   hold.ID,
			Data: payloads.HoldExpiredEvent{
				HoldID:    hold.ID,
				Kind:      hold.Kind,
				TargetID:  hold.TargetID,
				ExpiredAt: now,
			},
		})
	})
}

// ReapStaleCODOrders cancels cash-on-arrival orders still unpaid past the
// grace window and gives their confirmed stock back. Safe to run concurrently
// with itself; the guarded order cancellation picks one winner per order.
func (s *Service) ReapStaleCODOrders(ctx context.Context, graceWindow time.Duration, batchSize int) (int, error) {
	cutoff := s.now().UTC().Add(-graceWindow)
	stale, err := s.orders.ListStalePendingCOD(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	var errs error
	for _, order := range stale {
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.cancelTarget(ctx, tx, enums.PaymentTargetOrder, order.ID, s.now().UTC(), "cod grace window elapsed")
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		reaped++
	}
	return reaped, errs
}

// CancelBooking releases a guest's booking and its holds. Cancelling an
// already cancelled booking is a no-op.
func (s *Service) CancelBooking(ctx context.Context, bookingID, guestID uuid.UUID, reason string) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookings.Find(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking.GuestID != guestID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another guest")
		}
		switch booking.Status {
		case enums.BookingStatusCancelled:
			return nil
		case enums.BookingStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed bookings cannot be cancelled")
		}

		now := s.now().UTC()
		if booking.Status == enums.BookingStatusPendingPayment {
			intents := s.intents.WithTx(tx)
			intent, err := intents.FindByTarget(ctx, enums.PaymentTargetBooking, bookingID)
			if err != nil {
				if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
					return err
				}
				intent = nil
			}
			if intent != nil {
				failureReason := "cancelled by guest"
				if _, err := intents.MarkTerminalByID(ctx, intent.ID, enums.PaymentStatusFailed, now, &failureReason); err != nil {
					return err
				}
			}
		}
		return s.cancelTarget(ctx, tx, enums.PaymentTargetBooking, bookingID, now, reason)
	})
}
