package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

// SiteWindowRequest asks for units of a site over the half-open
// [CheckIn, CheckOut) window.
type SiteWindowRequest struct {
	SiteID   uuid.UUID
	CheckIn  time.Time
	CheckOut time.Time
	Units    int
}

// AdmitSiteWindow claims capacity for every night of the window inside tx.
// Admission is a conditional increment of each night's booked counter; if any
// night cannot absorb the requested units the whole claim fails and the
// transaction must roll back so partially incremented nights are reversed.
func AdmitSiteWindow(ctx context.Context, tx *gorm.DB, req SiteWindowRequest) (*models.Site, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if req.Units <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	checkIn := toNight(req.CheckIn)
	checkOut := toNight(req.CheckOut)
	nights := nightsBetween(checkIn, checkOut)
	if nights <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "check-out must be after check-in")
	}

	var site models.Site
	if err := tx.WithContext(ctx).First(&site, "id = ?", req.SiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load site")
	}
	if !site.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "site is not bookable")
	}
	if req.Units > site.Capacity {
		return nil, NewConflict(enums.ConflictCapacityExceeded, "requested units exceed site capacity")
	}
	if nights < site.MinNights {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stay is shorter than the site minimum")
	}

	// Owner blocks close every site under the property at once.
	var blocked int64
	err := tx.WithContext(ctx).Model(&models.PropertyBlock{}).
		Where("property_id = ? AND start_date < ? AND end_date > ?", site.PropertyID, checkOut, checkIn).
		Count(&blocked).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check property blocks")
	}
	if blocked > 0 {
		return nil, NewConflict(enums.ConflictDatesUnavailable, "window overlaps an owner block")
	}

	if err := seedCalendar(ctx, tx, &site, checkIn, checkOut); err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).Exec(
		`UPDATE calendar_blocks
		 SET booked_count = booked_count + ?, updated_at = ?
		 WHERE site_id = ? AND night >= ? AND night < ? AND booked_count + ? <= capacity`,
		req.Units, time.Now().UTC(), req.SiteID, checkIn, checkOut, req.Units,
	)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "claim calendar capacity")
	}
	if res.RowsAffected != int64(nights) {
		return nil, NewConflict(enums.ConflictDatesUnavailable, "one or more nights are full")
	}
	return &site, nil
}

// ReleaseSiteWindow returns previously claimed units for every night of the window.
func ReleaseSiteWindow(ctx context.Context, tx *gorm.DB, siteID uuid.UUID, checkIn, checkOut time.Time, units int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if units <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	in := toNight(checkIn)
	out := toNight(checkOut)
	nights := nightsBetween(in, out)
	if nights <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "check-out must be after check-in")
	}

	res := tx.WithContext(ctx).Exec(
		`UPDATE calendar_blocks
		 SET booked_count = booked_count - ?, updated_at = ?
		 WHERE site_id = ? AND night >= ? AND night < ? AND booked_count >= ?`,
		units, time.Now().UTC(), siteID, in, out, units,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release calendar capacity")
	}
	if res.RowsAffected != int64(nights) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "calendar counters out of sync with release")
	}
	return nil
}

// AdmitProductStock moves qty units from available to reserved for one product.
func AdmitProductStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	res := tx.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET available_qty = available_qty - ?, reserved_qty = reserved_qty + ?, updated_at = ?
		 WHERE product_id = ? AND available_qty >= ?`,
		qty, qty, time.Now().UTC(), productID, qty,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve product stock")
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).Model(&models.InventoryItem{}).
			Where("product_id = ?", productID).Count(&count).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check inventory existence")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product inventory not found")
		}
		return NewConflict(enums.ConflictOutOfStock, "insufficient stock")
	}
	return nil
}

// ConfirmProductStock settles a prior reservation: reserved units become sold.
func ConfirmProductStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	res := tx.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET reserved_qty = reserved_qty - ?, sold_qty = sold_qty + ?, updated_at = ?
		 WHERE product_id = ? AND reserved_qty >= ?`,
		qty, qty, time.Now().UTC(), productID, qty,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "confirm product stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved stock out of sync with confirmation")
	}
	return nil
}

// ReleaseProductStock returns reserved units to the available pool.
func ReleaseProductStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	res := tx.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET available_qty = available_qty + ?, reserved_qty = reserved_qty - ?, updated_at = ?
		 WHERE product_id = ? AND reserved_qty >= ?`,
		qty, qty, time.Now().UTC(), productID, qty,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release product stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved stock out of sync with release")
	}
	return nil
}

func seedCalendar(ctx context.Context, tx *gorm.DB, site *models.Site, checkIn, checkOut time.Time) error {
	rows := make([]models.CalendarBlock, 0, nightsBetween(checkIn, checkOut))
	for night := checkIn; night.Before(checkOut); night = night.AddDate(0, 0, 1) {
		rows = append(rows, models.CalendarBlock{
			SiteID:   site.ID,
			Night:    night,
			Capacity: site.Capacity,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seed calendar nights")
	}
	return nil
}

func toNight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func nightsBetween(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}
