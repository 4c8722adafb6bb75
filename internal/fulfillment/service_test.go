package fulfillment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/internal/payments"
	"github.com/pitchpoint/pitchpoint-backend/internal/reservations"
	"github.com/pitchpoint/pitchpoint-backend/pkg/config"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/outbox"
)

type txRunner struct {
	db *gorm.DB
}

func (r txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGateway struct {
	url string
	err error
}

func (g stubGateway) CreateCheckoutLink(ctx context.Context, params payments.CheckoutLinkParams) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

func newService(t *testing.T, gateway payments.CheckoutGateway) (*fulfillment.Service, *gorm.DB) {
	t.Helper()
	dsn := "file:fulfillment_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Site{}, &models.CalendarBlock{}, &models.PropertyBlock{},
		&models.Product{}, &models.InventoryItem{},
		&models.Hold{}, &models.Booking{}, &models.Order{}, &models.OrderLineItem{},
		&models.PaymentIntent{}, &models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Config: config.ReservationsConfig{
			HoldTTL:              30 * time.Minute,
			MaxWindowNights:      28,
			MaxLineItemsPerOrder: 25,
		},
		DB:       txRunner{db: db},
		Holds:    reservations.NewHoldRepository(db),
		Intents:  payments.NewIntentRepository(db),
		Bookings: fulfillment.NewBookingRepository(db),
		Orders:   fulfillment.NewOrderRepository(db),
		Outbox:   outbox.NewService(outbox.NewRepository(db), nil),
		Checkout: gateway,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, db
}

func seedSite(t *testing.T, db *gorm.DB, capacity int) models.Site {
	t.Helper()
	site := models.Site{
		ID: uuid.New(), PropertyID: uuid.New(), OwnerID: uuid.New(), Name: "Birch Bend",
		Capacity: capacity, MinNights: 1, BasePriceCents: 2500, IsActive: true,
	}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return site
}

func seedProduct(t *testing.T, db *gorm.DB, sku string, available int) models.Product {
	t.Helper()
	product := models.Product{
		ID: uuid.New(), OwnerID: uuid.New(), SKU: sku, Name: "Gear " + sku,
		PriceCents: 2000, IsActive: true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Create(&models.InventoryItem{ProductID: product.ID, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func TestFulfillBookingCard(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, stubGateway{url: "https://pay.example/abc"})
	ctx := context.Background()
	site := seedSite(t, db, 2)

	result, err := svc.FulfillBooking(ctx, fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 8, 1),
		CheckOut: date(2026, 8, 4),
		Units:    1,
		Method:   enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result.Booking.Status != enums.BookingStatusPendingPayment {
		t.Fatalf("booking status = %s", result.Booking.Status)
	}
	if result.Booking.TotalCents != 2500*3 {
		t.Fatalf("total = %d", result.Booking.TotalCents)
	}
	if result.Intent == nil || result.Intent.GatewayOrderCode == "" {
		t.Fatal("card booking needs a payment intent with a gateway code")
	}
	if result.CheckoutURL == nil || *result.CheckoutURL != "https://pay.example/abc" {
		t.Fatalf("checkout url = %v", result.CheckoutURL)
	}

	var intent models.PaymentIntent
	if err := db.First(&intent, "id = ?", result.Intent.ID).Error; err != nil {
		t.Fatalf("load intent: %v", err)
	}
	if intent.CheckoutURL == nil || *intent.CheckoutURL != "https://pay.example/abc" {
		t.Fatalf("persisted checkout url = %v", intent.CheckoutURL)
	}

	var block models.CalendarBlock
	if err := db.First(&block, "site_id = ? AND night = ?", site.ID, date(2026, 8, 2)).Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if block.BookedCount != 1 {
		t.Fatalf("booked count = %d", block.BookedCount)
	}
}

func TestFulfillBookingPriceOverride(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, nil)
	ctx := context.Background()
	site := seedSite(t, db, 1)

	override := 5000
	block := models.CalendarBlock{
		SiteID:             site.ID,
		Night:              date(2026, 8, 1),
		Capacity:           site.Capacity,
		PriceOverrideCents: &override,
	}
	if err := db.Create(&block).Error; err != nil {
		t.Fatalf("seed override: %v", err)
	}

	result, err := svc.FulfillBooking(ctx, fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 8, 1),
		CheckOut: date(2026, 8, 3),
		Units:    1,
		Method:   enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result.Booking.TotalCents != 5000+2500 {
		t.Fatalf("total = %d", result.Booking.TotalCents)
	}
}

func TestFulfillBookingCheckoutFailureKeepsBooking(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, stubGateway{err: errors.New("gateway down")})
	ctx := context.Background()
	site := seedSite(t, db, 1)

	result, err := svc.FulfillBooking(ctx, fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 8, 1),
		CheckOut: date(2026, 8, 2),
		Units:    1,
		Method:   enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result.CheckoutURL != nil {
		t.Fatal("checkout url should be absent when the gateway fails")
	}
	var booking models.Booking
	if err := db.First(&booking, "id = ?", result.Booking.ID).Error; err != nil {
		t.Fatalf("booking must survive a link failure: %v", err)
	}
}

func TestFulfillBookingCOD(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, nil)
	ctx := context.Background()
	site := seedSite(t, db, 1)

	result, err := svc.FulfillBooking(ctx, fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 8, 1),
		CheckOut: date(2026, 8, 3),
		Units:    1,
		Method:   enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if result.Intent != nil {
		t.Fatal("cod booking must not create a payment intent")
	}
	if result.Booking.Status != enums.BookingStatusConfirmed {
		t.Fatalf("booking status = %s", result.Booking.Status)
	}
	var hold models.Hold
	if err := db.First(&hold, "id = ?", result.Hold.ID).Error; err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if hold.Status != enums.HoldStatusConfirmed {
		t.Fatalf("hold status = %s", hold.Status)
	}
}

func TestFulfillBookingConflictSurfacesReason(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, nil)
	ctx := context.Background()
	site := seedSite(t, db, 1)

	req := fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 8, 1),
		CheckOut: date(2026, 8, 3),
		Units:    1,
		Method:   enums.PaymentMethodCard,
	}
	if _, err := svc.FulfillBooking(ctx, req); err != nil {
		t.Fatalf("first fulfill: %v", err)
	}

	req.GuestID = uuid.New()
	_, err := svc.FulfillBooking(ctx, req)
	reason, ok := reservations.ConflictReason(err)
	if !ok || reason != enums.ConflictDatesUnavailable {
		t.Fatalf("expected DATES_UNAVAILABLE, got %v", err)
	}

	var bookings int64
	if err := db.Model(&models.Booking{}).Count(&bookings).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if bookings != 1 {
		t.Fatalf("bookings = %d", bookings)
	}
}

func TestFulfillOrderAllOrNothing(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, nil)
	ctx := context.Background()
	stocked := seedProduct(t, db, "TENT-2", 10)
	scarce := seedProduct(t, db, "STOVE-1", 1)

	_, err := svc.FulfillOrder(ctx, fulfillment.OrderRequest{
		GuestID: uuid.New(),
		Lines: []fulfillment.OrderLine{
			{ProductID: stocked.ID, Qty: 2},
			{ProductID: scarce.ID, Qty: 3},
		},
		Method: enums.PaymentMethodCard,
	})
	reason, ok := reservations.ConflictReason(err)
	if !ok || reason != enums.ConflictOutOfStock {
		t.Fatalf("expected OUT_OF_STOCK, got %v", err)
	}

	// The first line's reservation must have been reversed with the rollback.
	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", stocked.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 10 || item.ReservedQty != 0 {
		t.Fatalf("inventory after rollback: %+v", item)
	}
	var orders int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("no order row may survive a partial failure, got %d", orders)
	}
	var holds int64
	if err := db.Model(&models.Hold{}).Count(&holds).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if holds != 0 {
		t.Fatalf("no hold may survive a partial failure, got %d", holds)
	}
}

func TestFulfillOrderCard(t *testing.T) {
	t.Parallel()

	svc, db := newService(t, stubGateway{url: "https://pay.example/order"})
	ctx := context.Background()
	a := seedProduct(t, db, "PAD-1", 6)
	b := seedProduct(t, db, "BAG-1", 6)

	result, err := svc.FulfillOrder(ctx, fulfillment.OrderRequest{
		GuestID: uuid.New(),
		Lines: []fulfillment.OrderLine{
			{ProductID: a.ID, Qty: 2},
			{ProductID: b.ID, Qty: 1},
		},
		Method: enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("fulfill order: %v", err)
	}
	if len(result.Holds) != 2 {
		t.Fatalf("holds = %d", len(result.Holds))
	}
	if result.Order.TotalCents != 2000*3 {
		t.Fatalf("total = %d", result.Order.TotalCents)
	}
	if result.Intent == nil || result.Intent.AmountCents != result.Order.TotalCents {
		t.Fatalf("intent mismatch: %+v", result.Intent)
	}

	var item models.InventoryItem
	if err := db.First(&item, "product_id = ?", a.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 4 || item.ReservedQty != 2 {
		t.Fatalf("inventory after reserve: %+v", item)
	}
}

func TestFulfillOrderValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.FulfillOrder(ctx, fulfillment.OrderRequest{
		GuestID: uuid.New(),
		Method:  enums.PaymentMethodCard,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.FulfillOrder(ctx, fulfillment.OrderRequest{
		GuestID: uuid.New(),
		Lines:   []fulfillment.OrderLine{{ProductID: uuid.New(), Qty: 1}},
		Method:  enums.PaymentMethod("wire"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
