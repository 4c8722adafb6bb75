package payments_test

import (
	"context"
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

type harness struct {
	db          *gorm.DB
	payments    *payments.Service
	fulfillment *fulfillment.Service
	holds       *reservations.HoldRepository
	intents     *payments.IntentRepository
	bookings    *fulfillment.BookingRepository
	orders      *fulfillment.OrderRepository
}

type txRunner struct {
	db *gorm.DB
}

func (r txRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
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

	runner := txRunner{db: db}
	holds := reservations.NewHoldRepository(db)
	intents := payments.NewIntentRepository(db)
	bookings := fulfillment.NewBookingRepository(db)
	orders := fulfillment.NewOrderRepository(db)
	emitter := outbox.NewService(outbox.NewRepository(db), nil)

	paySvc, err := payments.NewService(payments.ServiceParams{
		DB:       runner,
		Holds:    holds,
		Intents:  intents,
		Bookings: bookings,
		Orders:   orders,
		Outbox:   emitter,
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	fulSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Config: config.ReservationsConfig{
			HoldTTL:              30 * time.Minute,
			CODGraceWindow:       24 * time.Hour,
			MaxWindowNights:      28,
			MaxLineItemsPerOrder: 25,
		},
		DB:       runner,
		Holds:    holds,
		Intents:  intents,
		Bookings: bookings,
		Orders:   orders,
		Outbox:   emitter,
	})
	if err != nil {
		t.Fatalf("fulfillment service: %v", err)
	}

	return &harness{
		db:          db,
		payments:    paySvc,
		fulfillment: fulSvc,
		holds:       holds,
		intents:     intents,
		bookings:    bookings,
		orders:      orders,
	}
}

func (h *harness) seedSite(t *testing.T, capacity int) models.Site {
	t.Helper()
	site := models.Site{
		ID: uuid.New(), PropertyID: uuid.New(), OwnerID: uuid.New(), Name: "Cedar Flats",
		Capacity: capacity, MinNights: 1, BasePriceCents: 4000, IsActive: true,
	}
	if err := h.db.Create(&site).Error; err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return site
}

func (h *harness) seedProduct(t *testing.T, available int) models.Product {
	t.Helper()
	product := models.Product{
		ID: uuid.New(), OwnerID: uuid.New(), SKU: "LANTERN-1", Name: "Lantern",
		PriceCents: 1500, IsActive: true,
	}
	if err := h.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	item := models.InventoryItem{ProductID: product.ID, AvailableQty: available}
	if err := h.db.Create(&item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func (h *harness) cardBooking(t *testing.T, site models.Site) *fulfillment.BookingResult {
	t.Helper()
	result, err := h.fulfillment.FulfillBooking(context.Background(), fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 7, 10),
		CheckOut: date(2026, 7, 12),
		Units:    1,
		Method:   enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("fulfill booking: %v", err)
	}
	return result
}

func (h *harness) bookedCount(t *testing.T, siteID uuid.UUID, night time.Time) int {
	t.Helper()
	var block models.CalendarBlock
	err := h.db.First(&block, "site_id = ? AND night = ?", siteID, night).Error
	if err != nil {
		t.Fatalf("load calendar block: %v", err)
	}
	return block.BookedCount
}

func (h *harness) eventCount(t *testing.T, eventType enums.OutboxEventType) int {
	t.Helper()
	var count int64
	err := h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return int(count)
}

func TestReconcileSettlesExactlyOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	site := h.seedSite(t, 1)
	booked := h.cardBooking(t, site)

	first, err := h.payments.Reconcile(ctx, payments.ReconcileParams{
		GatewayCode: booked.Intent.GatewayOrderCode,
		Outcome:     enums.PaymentStatusSucceeded,
	})
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if !first.Applied {
		t.Fatal("first reconcile should apply")
	}

	second, err := h.payments.Reconcile(ctx, payments.ReconcileParams{
		GatewayCode: booked.Intent.GatewayOrderCode,
		Outcome:     enums.PaymentStatusSucceeded,
	})
	if err != nil {
		t.Fatalf("duplicate reconcile: %v", err)
	}
	if second.Applied {
		t.Fatal("duplicate reconcile must be a no-op")
	}
	if second.Intent.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("intent status = %s", second.Intent.Status)
	}

	booking, err := h.bookings.Find(ctx, nil, booked.Booking.ID)
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if booking.Status != enums.BookingStatusConfirmed {
		t.Fatalf("booking status = %s", booking.Status)
	}
	hold, err := h.holds.FindByID(ctx, booked.Hold.ID)
	if err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if hold.Status != enums.HoldStatusConfirmed {
		t.Fatalf("hold status = %s", hold.Status)
	}
	if got := h.eventCount(t, enums.EventPaymentSucceeded); got != 1 {
		t.Fatalf("payment_succeeded events = %d", got)
	}
	if got := h.eventCount(t, enums.EventBookingConfirmed); got != 1 {
		t.Fatalf("booking_confirmed events = %d", got)
	}
}

func TestReconcileUnknownCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.payments.Reconcile(context.Background(), payments.ReconcileParams{
		GatewayCode: "pp-" + uuid.NewString(),
		Outcome:     enums.PaymentStatusSucceeded,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReconcileFailureReleasesWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	site := h.seedSite(t, 1)
	booked := h.cardBooking(t, site)

	if got := h.bookedCount(t, site.ID, date(2026, 7, 10)); got != 1 {
		t.Fatalf("booked count before failure = %d", got)
	}

	result, err := h.payments.Reconcile(ctx, payments.ReconcileParams{
		GatewayCode: booked.Intent.GatewayOrderCode,
		Outcome:     enums.PaymentStatusFailed,
		Reason:      "card declined",
	})
	if err != nil {
		t.Fatalf("reconcile failure: %v", err)
	}
	if !result.Applied {
		t.Fatal("failure should apply")
	}

	if got := h.bookedCount(t, site.ID, date(2026, 7, 10)); got != 0 {
		t.Fatalf("booked count after failure = %d", got)
	}
	booking, err := h.bookings.Find(ctx, nil, booked.Booking.ID)
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if booking.Status != enums.BookingStatusCancelled {
		t.Fatalf("booking status = %s", booking.Status)
	}
	hold, err := h.holds.FindByID(ctx, booked.Hold.ID)
	if err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if hold.Status != enums.HoldStatusReleased {
		t.Fatalf("hold status = %s", hold.Status)
	}
	if got := h.eventCount(t, enums.EventPaymentFailed); got != 1 {
		t.Fatalf("payment_failed events = %d", got)
	}
}

func TestReconcileOrderSuccessMovesStockToSold(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	product := h.seedProduct(t, 5)

	result, err := h.fulfillment.FulfillOrder(ctx, fulfillment.OrderRequest{
		GuestID: uuid.New(),
		Lines:   []fulfillment.OrderLine{{ProductID: product.ID, Qty: 2}},
		Method:  enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("fulfill order: %v", err)
	}

	_, err = h.payments.Reconcile(ctx, payments.ReconcileParams{
		GatewayCode: result.Intent.GatewayOrderCode,
		Outcome:     enums.PaymentStatusSucceeded,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var item models.InventoryItem
	if err := h.db.First(&item, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 3 || item.ReservedQty != 0 || item.SoldQty != 2 {
		t.Fatalf("inventory after settle: %+v", item)
	}
	order, err := h.orders.Find(ctx, nil, result.Order.ID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("order status = %s", order.Status)
	}
}

func TestExpireDueHoldsRestoresCapacity(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	site := h.seedSite(t, 1)
	booked := h.cardBooking(t, site)

	past := time.Now().UTC().Add(-time.Minute)
	err := h.db.Model(&models.Hold{}).Where("id = ?", booked.Hold.ID).
		Update("expires_at", past).Error
	if err != nil {
		t.Fatalf("backdate hold: %v", err)
	}

	expired, err := h.payments.ExpireDueHolds(ctx, 50)
	if err != nil {
		t.Fatalf("expire holds: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d", expired)
	}

	if got := h.bookedCount(t, site.ID, date(2026, 7, 10)); got != 0 {
		t.Fatalf("booked count after expiry = %d", got)
	}
	hold, err := h.holds.FindByID(ctx, booked.Hold.ID)
	if err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if hold.Status != enums.HoldStatusExpired {
		t.Fatalf("hold status = %s", hold.Status)
	}
	intent, err := h.intents.FindByGatewayCode(ctx, booked.Intent.GatewayOrderCode)
	if err != nil {
		t.Fatalf("load intent: %v", err)
	}
	if intent.Status != enums.PaymentStatusExpired {
		t.Fatalf("intent status = %s", intent.Status)
	}
	booking, err := h.bookings.Find(ctx, nil, booked.Booking.ID)
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if booking.Status != enums.BookingStatusCancelled {
		t.Fatalf("booking status = %s", booking.Status)
	}

	// The window is bookable again.
	again, err := h.fulfillment.FulfillBooking(ctx, fulfillment.BookingRequest{
		GuestID:  uuid.New(),
		SiteID:   site.ID,
		CheckIn:  date(2026, 7, 10),
		CheckOut: date(2026, 7, 12),
		Units:    1,
		Method:   enums.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("rebook after expiry: %v", err)
	}
	if again.Booking.Status != enums.BookingStatusPendingPayment {
		t.Fatalf("rebooked status = %s", again.Booking.Status)
	}

	// Second sweep finds nothing.
	expired, err = h.payments.ExpireDueHolds(ctx, 50)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("second sweep expired = %d", expired)
	}
}

func TestReconcileAfterExpiryFlagsUnresolved(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	site := h.seedSite(t, 1)
	booked := h.cardBooking(t, site)

	past := time.Now().UTC().Add(-time.Minute)
	err := h.db.Model(&models.Hold{}).Where("id = ?", booked.Hold.ID).
		Update("expires_at", past).Error
	if err != nil {
		t.Fatalf("backdate hold: %v", err)
	}
	if _, err := h.payments.ExpireDueHolds(ctx, 50); err != nil {
		t.Fatalf("expire holds: %v", err)
	}

	// Late success notification loses the intent race and applies nothing.
	result, err := h.payments.Reconcile(ctx, payments.ReconcileParams{
		GatewayCode: booked.Intent.GatewayOrderCode,
		Outcome:     enums.PaymentStatusSucceeded,
	})
	if err != nil {
		t.Fatalf("late reconcile: %v", err)
	}
	if result.Applied {
		t.Fatal("late reconcile must not apply")
	}
	if result.Intent.Status != enums.PaymentStatusExpired {
		t.Fatalf("intent status = %s", result.Intent.Status)
	}
}

func TestCancelBooking(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	site := h.seedSite(t, 1)
	booked := h.cardBooking(t, site)
	guestID := booked.Booking.GuestID

	err := h.payments.CancelBooking(ctx, booked.Booking.ID, uuid.New(), "wrong guest")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := h.payments.CancelBooking(ctx, booked.Booking.ID, guestID, "plans changed"); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if got := h.bookedCount(t, site.ID, date(2026, 7, 10)); got != 0 {
		t.Fatalf("booked count after cancel = %d", got)
	}
	booking, err := h.bookings.Find(ctx, nil, booked.Booking.ID)
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if booking.Status != enums.BookingStatusCancelled {
		t.Fatalf("booking status = %s", booking.Status)
	}
	intent, err := h.intents.FindByGatewayCode(ctx, booked.Intent.GatewayOrderCode)
	if err != nil {
		t.Fatalf("load intent: %v", err)
	}
	if intent.Status != enums.PaymentStatusFailed {
		t.Fatalf("intent status = %s", intent.Status)
	}

	// Repeat cancel is a no-op.
	if err := h.payments.CancelBooking(ctx, booked.Booking.ID, guestID, "again"); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
}

func TestReapStaleCODOrders(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	product := h.seedProduct(t, 4)

	result, err := h.fulfillment.FulfillOrder(ctx, fulfillment.OrderRequest{
		GuestID: uuid.New(),
		Lines:   []fulfillment.OrderLine{{ProductID: product.ID, Qty: 3}},
		Method:  enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("fulfill cod order: %v", err)
	}

	// Fresh orders are left alone.
	reaped, err := h.payments.ReapStaleCODOrders(ctx, 24*time.Hour, 50)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("fresh order reaped: %d", reaped)
	}

	old := time.Now().UTC().Add(-48 * time.Hour)
	err = h.db.Model(&models.Order{}).Where("id = ?", result.Order.ID).
		Update("created_at", old).Error
	if err != nil {
		t.Fatalf("backdate order: %v", err)
	}

	reaped, err = h.payments.ReapStaleCODOrders(ctx, 24*time.Hour, 50)
	if err != nil {
		t.Fatalf("reap stale: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped = %d", reaped)
	}

	var item models.InventoryItem
	if err := h.db.First(&item, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.AvailableQty != 4 || item.ReservedQty != 0 {
		t.Fatalf("inventory after reap: %+v", item)
	}
	order, err := h.orders.Find(ctx, nil, result.Order.ID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("order status = %s", order.Status)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
