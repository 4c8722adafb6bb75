package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/internal/payments"
	"github.com/pitchpoint/pitchpoint-backend/internal/reservations"
	"github.com/pitchpoint/pitchpoint-backend/pkg/config"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
	"github.com/pitchpoint/pitchpoint-backend/pkg/outbox"
	"github.com/pitchpoint/pitchpoint-backend/pkg/outbox/payloads"
)

// ServiceParams wires the fulfillment service.
type ServiceParams struct {
	Logger   *logger.Logger
	Config   config.ReservationsConfig
	DB       payments.TxRunner
	Holds    *reservations.HoldRepository
	Intents  *payments.IntentRepository
	Bookings *BookingRepository
	Orders   *OrderRepository
	Outbox   payments.EventEmitter
	Checkout payments.CheckoutGateway
}

// Service turns admission requests into durable bookings and orders. Each
// fulfillment is one transaction: capacity claims, the aggregate row, its
// holds, the payment intent, and the outbox event commit together or not at
// all.
type Service struct {
	logg     *logger.Logger
	cfg      config.ReservationsConfig
	db       payments.TxRunner
	holds    *reservations.HoldRepository
	intents  *payments.IntentRepository
	bookings *BookingRepository
	orders   *OrderRepository
	outbox   payments.EventEmitter
	checkout payments.CheckoutGateway
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
		return nil, errors.New("booking and order repositories required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &Service{
		logg:     params.Logger,
		cfg:      params.Config,
		db:       params.DB,
		holds:    params.Holds,
		intents:  params.Intents,
		bookings: params.Bookings,
		orders:   params.Orders,
		outbox:   params.Outbox,
		checkout: params.Checkout,
		now:      time.Now,
	}, nil
}

// BookingRequest asks to reserve units of a site over [CheckIn, CheckOut).
type BookingRequest struct {
	GuestID  uuid.UUID
	SiteID   uuid.UUID
	CheckIn  time.Time
	CheckOut time.Time
	Units    int
	Method   enums.PaymentMethod
}

// BookingResult is the committed outcome of a booking fulfillment. Intent and
// CheckoutURL are nil for cash-on-arrival bookings.
type BookingResult struct {
	Booking     *models.Booking
	Hold        *models.Hold
	Intent      *models.PaymentIntent
	CheckoutURL *string
}

// FulfillBooking admits the site window, records the booking with its hold,
// and for card payments creates the payment intent. Cash-on-arrival bookings
// confirm immediately. The hosted checkout link is created after commit; a
// link failure leaves a valid pending booking the guest can retry paying.
func (s *Service) FulfillBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if !req.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if s.cfg.MaxWindowNights > 0 {
		nights := int(req.CheckOut.Sub(req.CheckIn).Hours() / 24)
		if nights > s.cfg.MaxWindowNights {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stay exceeds the maximum window")
		}
	}

	var result *BookingResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()
		site, err := reservations.AdmitSiteWindow(ctx, tx, reservations.SiteWindowRequest{
			SiteID:   req.SiteID,
			CheckIn:  req.CheckIn,
			CheckOut: req.CheckOut,
			Units:    req.Units,
		})
		if err != nil {
			return err
		}

		total, err := windowPriceCents(ctx, tx, site, night(req.CheckIn), night(req.CheckOut), req.Units)
		if err != nil {
			return err
		}
		booking := &models.Booking{
			SiteID:        site.ID,
			GuestID:       req.GuestID,
			Status:        enums.BookingStatusPendingPayment,
			CheckIn:       night(req.CheckIn),
			CheckOut:      night(req.CheckOut),
			Units:         req.Units,
			TotalCents:    total,
			PaymentMethod: req.Method,
		}
		if err := s.bookings.Create(ctx, tx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist booking")
		}

		hold := &models.Hold{
			Kind:       enums.HoldKindSiteWindow,
			GuestID:    req.GuestID,
			TargetType: enums.PaymentTargetBooking,
			TargetID:   booking.ID,
			SiteID:     &site.ID,
			CheckIn:    &booking.CheckIn,
			CheckOut:   &booking.CheckOut,
			Units:      req.Units,
			ExpiresAt:  now.Add(s.cfg.HoldTTL),
		}
		if err := s.holds.WithTx(tx).Create(ctx, hold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist hold")
		}

		result = &BookingResult{Booking: booking, Hold: hold}
		if req.Method == enums.PaymentMethodCOD {
			return s.confirmCODBooking(ctx, tx, booking, hold, now)
		}

		intent := &models.PaymentIntent{
			TargetType:       enums.PaymentTargetBooking,
			TargetID:         booking.ID,
			Method:           req.Method,
			AmountCents:      booking.TotalCents,
			GatewayOrderCode: newGatewayOrderCode(),
		}
		if err := s.intents.WithTx(tx).Create(ctx, intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment intent")
		}
		result.Intent = intent

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingRequested,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         &outbox.ActorRef{GuestID: req.GuestID, Role: "guest"},
			Data: payloads.BookingRequestedEvent{
				BookingID: booking.ID,
				SiteID:    site.ID,
				GuestID:   req.GuestID,
				CheckIn:   booking.CheckIn,
				CheckOut:  booking.CheckOut,
				Units:     req.Units,
				Method:    req.Method,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Intent != nil {
		s.attachCheckoutLink(ctx, result)
	}
	return result, nil
}

func (s *Service) confirmCODBooking(ctx context.Context, tx *gorm.DB, booking *models.Booking, hold *models.Hold, now time.Time) error {
	if _, err := s.holds.WithTx(tx).MarkConfirmed(ctx, hold.ID, now); err != nil {
		return err
	}
	if _, err := s.bookings.MarkConfirmed(ctx, tx, booking.ID, now); err != nil {
		return err
	}
	booking.Status = enums.BookingStatusConfirmed
	booking.ConfirmedAt = &now
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingConfirmed,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         &outbox.ActorRef{GuestID: booking.GuestID, Role: "guest"},
		Data: payloads.BookingConfirmedEvent{
			BookingID:   booking.ID,
			SiteID:      booking.SiteID,
			GuestID:     booking.GuestID,
			ConfirmedAt: now,
		},
	})
}

// OrderLine is one requested product quantity.
type OrderLine struct {
	ProductID uuid.UUID
	Qty       int
}

// OrderRequest asks to purchase gear.
type OrderRequest struct {
	GuestID uuid.UUID
	Lines   []OrderLine
	Method  enums.PaymentMethod
}

// OrderResult is the committed outcome of an order fulfillment.
type OrderResult struct {
	Order       *models.Order
	Holds       []*models.Hold
	Intent      *models.PaymentIntent
	CheckoutURL *string
}

// FulfillOrder reserves stock for every line item inside one transaction. Any
// line that cannot be reserved aborts the whole order; the rollback reverses
// every reservation already made, so no partially stocked order survives.
func (s *Service) FulfillOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if !req.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line item")
	}
	if s.cfg.MaxLineItemsPerOrder > 0 && len(req.Lines) > s.cfg.MaxLineItemsPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has too many line items")
	}

	var result *OrderResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()

		items := make([]models.OrderLineItem, 0, len(req.Lines))
		subtotal := 0
		for _, line := range req.Lines {
			if line.Qty <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "line item qty must be positive")
			}
			var product models.Product
			if err := tx.WithContext(ctx).First(&product, "id = ?", line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not purchasable")
			}
			if err := reservations.AdmitProductStock(ctx, tx, product.ID, line.Qty); err != nil {
				return err
			}
			items = append(items, models.OrderLineItem{
				ProductID:      product.ID,
				Name:           product.Name,
				Qty:            line.Qty,
				UnitPriceCents: product.PriceCents,
				TotalCents:     product.PriceCents * line.Qty,
			})
			subtotal += product.PriceCents * line.Qty
		}

		order := &models.Order{
			GuestID:       req.GuestID,
			Status:        enums.OrderStatusPendingPayment,
			PaymentMethod: req.Method,
			SubtotalCents: subtotal,
			TotalCents:    subtotal,
			Items:         items,
		}
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
		}

		expiresAt := now.Add(s.cfg.HoldTTL)
		orderHolds := make([]*models.Hold, 0, len(order.Items))
		for i := range order.Items {
			item := order.Items[i]
			hold := &models.Hold{
				Kind:       enums.HoldKindProductStock,
				GuestID:    req.GuestID,
				TargetType: enums.PaymentTargetOrder,
				TargetID:   order.ID,
				ProductID:  &item.ProductID,
				Qty:        item.Qty,
				ExpiresAt:  expiresAt,
			}
			if err := s.holds.WithTx(tx).Create(ctx, hold); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist hold")
			}
			orderHolds = append(orderHolds, hold)
		}

		result = &OrderResult{Order: order, Holds: orderHolds}
		if req.Method == enums.PaymentMethodCOD {
			return s.confirmCODOrder(ctx, tx, order, orderHolds, now)
		}

		intent := &models.PaymentIntent{
			TargetType:       enums.PaymentTargetOrder,
			TargetID:         order.ID,
			Method:           req.Method,
			AmountCents:      order.TotalCents,
			GatewayOrderCode: newGatewayOrderCode(),
		}
		if err := s.intents.WithTx(tx).Create(ctx, intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment intent")
		}
		result.Intent = intent

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{GuestID: req.GuestID, Role: "guest"},
			Data: payloads.OrderRequestedEvent{
				OrderID: order.ID,
				GuestID: req.GuestID,
				Items:   len(order.Items),
				Method:  req.Method,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Intent != nil {
		s.attachOrderCheckoutLink(ctx, result)
	}
	return result, nil
}

// confirmCODOrder confirms the stock holds so the sweeper leaves them alone.
// The order itself stays pending until payment is collected on arrival; unpaid
// orders past the grace window are reaped by the sweep.
func (s *Service) confirmCODOrder(ctx context.Context, tx *gorm.DB, order *models.Order, holds []*models.Hold, now time.Time) error {
	for _, hold := range holds {
		if _, err := s.holds.WithTx(tx).MarkConfirmed(ctx, hold.ID, now); err != nil {
			return err
		}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{GuestID: order.GuestID, Role: "guest"},
		Data: payloads.OrderRequestedEvent{
			OrderID: order.ID,
			GuestID: order.GuestID,
			Items:   len(order.Items),
			Method:  order.PaymentMethod,
		},
	})
}

func (s *Service) attachCheckoutLink(ctx context.Context, result *BookingResult) {
	if s.checkout == nil {
		return
	}
	url, err := s.checkout.CreateCheckoutLink(ctx, payments.CheckoutLinkParams{
		Name:        fmt.Sprintf("Stay %s to %s", result.Booking.CheckIn.Format("2006-01-02"), result.Booking.CheckOut.Format("2006-01-02")),
		AmountCents: result.Intent.AmountCents,
		Reference:   result.Intent.GatewayOrderCode,
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "checkout link creation failed", err)
		}
		return
	}
	result.CheckoutURL = &url
	if err := s.intents.UpdateCheckoutURL(ctx, result.Intent.ID, url); err != nil && s.logg != nil {
		s.logg.Error(ctx, "persist checkout url failed", err)
	}
}

func (s *Service) attachOrderCheckoutLink(ctx context.Context, result *OrderResult) {
	if s.checkout == nil {
		return
	}
	url, err := s.checkout.CreateCheckoutLink(ctx, payments.CheckoutLinkParams{
		Name:        fmt.Sprintf("Gear order (%d items)", len(result.Order.Items)),
		AmountCents: result.Intent.AmountCents,
		Reference:   result.Intent.GatewayOrderCode,
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "checkout link creation failed", err)
		}
		return
	}
	result.CheckoutURL = &url
	if err := s.intents.UpdateCheckoutURL(ctx, result.Intent.ID, url); err != nil && s.logg != nil {
		s.logg.Error(ctx, "persist checkout url failed", err)
	}
}

// windowPriceCents prices the stay night by night. A calendar row with a
// price override replaces the site base price for that night.
func windowPriceCents(ctx context.Context, tx *gorm.DB, site *models.Site, checkIn, checkOut time.Time, units int) (int, error) {
	var blocks []models.CalendarBlock
	err := tx.WithContext(ctx).
		Where("site_id = ? AND night >= ? AND night < ?", site.ID, checkIn, checkOut).
		Find(&blocks).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load nightly prices")
	}
	overrides := make(map[time.Time]int, len(blocks))
	for _, b := range blocks {
		if b.PriceOverrideCents != nil {
			overrides[night(b.Night)] = *b.PriceOverrideCents
		}
	}
	total := 0
	for n := checkIn; n.Before(checkOut); n = n.AddDate(0, 0, 1) {
		price := site.BasePriceCents
		if override, ok := overrides[n]; ok {
			price = override
		}
		total += price * units
	}
	return total, nil
}

// newGatewayOrderCode builds the reference the gateway echoes back in webhook
// notifications. Generated once per intent and never reused.
func newGatewayOrderCode() string {
	return "pp-" + uuid.NewString()
}

func night(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
