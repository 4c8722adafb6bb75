package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

func TestSiteWindowMergesCountersAndBlocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	idx := NewIndex(db)

	site := models.Site{ID: uuid.New(), PropertyID: uuid.New(), OwnerID: uuid.New(), Name: "Pine Hollow", Capacity: 4, MinNights: 1, BasePriceCents: 3000, IsActive: true}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("seed site: %v", err)
	}

	override := 4500
	if err := db.Create(&models.CalendarBlock{SiteID: site.ID, Night: date(2026, 6, 2), Capacity: 4, BookedCount: 3, PriceOverrideCents: &override}).Error; err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	block := models.PropertyBlock{ID: uuid.New(), PropertyID: site.PropertyID, StartDate: date(2026, 6, 3), EndDate: date(2026, 6, 4), Type: enums.BlockTypeOwnerUse}
	if err := db.Create(&block).Error; err != nil {
		t.Fatalf("seed block: %v", err)
	}

	nights, err := idx.SiteWindow(ctx, site.ID, date(2026, 6, 1), date(2026, 6, 4))
	if err != nil {
		t.Fatalf("site window: %v", err)
	}
	if len(nights) != 3 {
		t.Fatalf("expected 3 nights, got %d", len(nights))
	}
	if nights[0].Remaining != 4 || nights[0].Blocked {
		t.Fatalf("unseeded night should be fully open: %+v", nights[0])
	}
	if nights[0].PriceCents != 3000 {
		t.Fatalf("unseeded night should use the base price: %+v", nights[0])
	}
	if nights[1].Remaining != 1 || nights[1].Booked != 3 {
		t.Fatalf("counter night mismatch: %+v", nights[1])
	}
	if nights[1].PriceCents != 4500 {
		t.Fatalf("override night price mismatch: %+v", nights[1])
	}
	if !nights[2].Blocked || nights[2].Remaining != 0 {
		t.Fatalf("blocked night mismatch: %+v", nights[2])
	}
}

func TestWindowOpen(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	idx := NewIndex(db)

	site := models.Site{ID: uuid.New(), PropertyID: uuid.New(), OwnerID: uuid.New(), Name: "Lakeside", Capacity: 2, MinNights: 1, BasePriceCents: 5200, IsActive: true}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("seed site: %v", err)
	}
	if err := db.Create(&models.CalendarBlock{SiteID: site.ID, Night: date(2026, 6, 2), Capacity: 2, BookedCount: 1}).Error; err != nil {
		t.Fatalf("seed counter: %v", err)
	}

	open, err := idx.WindowOpen(ctx, site.ID, date(2026, 6, 1), date(2026, 6, 3), 1)
	if err != nil || !open {
		t.Fatalf("expected open window: open=%v err=%v", open, err)
	}

	open, err = idx.WindowOpen(ctx, site.ID, date(2026, 6, 1), date(2026, 6, 3), 2)
	if err != nil || open {
		t.Fatalf("expected closed window for 2 units: open=%v err=%v", open, err)
	}
}

func TestSiteWindowValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	idx := NewIndex(db)

	_, err := idx.SiteWindow(ctx, uuid.New(), date(2026, 6, 4), date(2026, 6, 1))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = idx.SiteWindow(ctx, uuid.New(), date(2026, 6, 1), date(2026, 6, 3))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:availability_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Site{}, &models.CalendarBlock{}, &models.PropertyBlock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
