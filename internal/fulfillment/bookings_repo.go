package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

// BookingRepository persists bookings. Status transitions are guarded so the
// reconciler, the sweeper, and guest cancellation never double-apply.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *BookingRepository) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	if booking == nil {
		return errors.New("booking required")
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if booking.Status == "" {
		booking.Status = enums.BookingStatusPendingPayment
	}
	return r.conn(tx).WithContext(ctx).Create(booking).Error
}

func (r *BookingRepository) Find(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.conn(tx).WithContext(ctx).First(&booking, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load booking")
	}
	return &booking, nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID uuid.UUID, limit int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("guest_id = ?", guestID).
		Order("created_at DESC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list bookings")
	}
	return bookings, nil
}

// MarkConfirmed moves a pending booking to confirmed. The returned bool
// reports whether this caller performed the move.
func (r *BookingRepository) MarkConfirmed(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := r.conn(tx).WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, enums.BookingStatusPendingPayment).
		Updates(map[string]any{
			"status":       enums.BookingStatusConfirmed,
			"confirmed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "confirm booking")
	}
	return res.RowsAffected == 1, nil
}

// MarkCancelled cancels a booking that has not completed or already been
// cancelled.
func (r *BookingRepository) MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := r.conn(tx).WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, []enums.BookingStatus{
			enums.BookingStatusPendingPayment,
			enums.BookingStatusConfirmed,
		}).
		Updates(map[string]any{
			"status":       enums.BookingStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "cancel booking")
	}
	return res.RowsAffected == 1, nil
}
