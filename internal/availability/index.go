package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

const maxQueryNights = 92

// NightAvailability reports what is left of one site night.
type NightAvailability struct {
	Night      time.Time `json:"night"`
	Capacity   int       `json:"capacity"`
	Booked     int       `json:"booked"`
	Remaining  int       `json:"remaining"`
	Blocked    bool      `json:"blocked"`
	PriceCents int       `json:"price_cents"`
}

// Index answers availability reads from the calendar counters and owner
// blocks. Nights with no counter row yet are reported at full site capacity.
type Index struct {
	db *gorm.DB
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db}
}

// SiteWindow returns per-night availability over [from, to).
func (i *Index) SiteWindow(ctx context.Context, siteID uuid.UUID, from, to time.Time) ([]NightAvailability, error) {
	from = toNight(from)
	to = toNight(to)
	nights := int(to.Sub(from).Hours() / 24)
	if nights <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window end must be after start")
	}
	if nights > maxQueryNights {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window exceeds the queryable range")
	}

	var site models.Site
	if err := i.db.WithContext(ctx).First(&site, "id = ?", siteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load site")
	}

	var counters []models.CalendarBlock
	err := i.db.WithContext(ctx).
		Where("site_id = ? AND night >= ? AND night < ?", siteID, from, to).
		Find(&counters).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load calendar counters")
	}
	booked := make(map[time.Time]models.CalendarBlock, len(counters))
	for _, c := range counters {
		booked[toNight(c.Night)] = c
	}

	var blocks []models.PropertyBlock
	err = i.db.WithContext(ctx).
		Where("property_id = ? AND start_date < ? AND end_date > ?", site.PropertyID, to, from).
		Find(&blocks).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load property blocks")
	}

	out := make([]NightAvailability, 0, nights)
	for night := from; night.Before(to); night = night.AddDate(0, 0, 1) {
		entry := NightAvailability{
			Night:      night,
			Capacity:   site.Capacity,
			PriceCents: site.BasePriceCents,
		}
		if c, ok := booked[night]; ok {
			entry.Capacity = c.Capacity
			entry.Booked = c.BookedCount
			if c.PriceOverrideCents != nil {
				entry.PriceCents = *c.PriceOverrideCents
			}
		}
		if isBlocked(blocks, night) {
			entry.Blocked = true
			entry.Remaining = 0
		} else {
			entry.Remaining = entry.Capacity - entry.Booked
			if entry.Remaining < 0 {
				entry.Remaining = 0
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// WindowOpen reports whether every night of the window has at least units left.
func (i *Index) WindowOpen(ctx context.Context, siteID uuid.UUID, from, to time.Time, units int) (bool, error) {
	if units <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	nights, err := i.SiteWindow(ctx, siteID, from, to)
	if err != nil {
		return false, err
	}
	for _, n := range nights {
		if n.Blocked || n.Remaining < units {
			return false, nil
		}
	}
	return true, nil
}

func isBlocked(blocks []models.PropertyBlock, night time.Time) bool {
	for _, b := range blocks {
		if !night.Before(toNight(b.StartDate)) && night.Before(toNight(b.EndDate)) {
			return true
		}
	}
	return false
}

func toNight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
