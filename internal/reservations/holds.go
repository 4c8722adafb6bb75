package reservations

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

// HoldRepository persists holds and applies their guarded lifecycle
// transitions. A transition out of pending succeeds for exactly one caller;
// the returned bool reports whether this caller won.
type HoldRepository struct {
	db *gorm.DB
}

func NewHoldRepository(db *gorm.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *HoldRepository) WithTx(tx *gorm.DB) *HoldRepository {
	if tx == nil {
		return r
	}
	return &HoldRepository{db: tx}
}

func (r *HoldRepository) Create(ctx context.Context, hold *models.Hold) error {
	if hold == nil {
		return errors.New("hold required")
	}
	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	if hold.Status == "" {
		hold.Status = enums.HoldStatusPending
	}
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *HoldRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Hold, error) {
	var hold models.Hold
	err := r.db.WithContext(ctx).First(&hold, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "hold not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load hold")
	}
	return &hold, nil
}

func (r *HoldRepository) FindByTarget(ctx context.Context, targetType enums.PaymentTargetType, targetID uuid.UUID) ([]models.Hold, error) {
	var holds []models.Hold
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&holds).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load holds for target")
	}
	return holds, nil
}

// FindExpiredPending returns pending holds whose deadline passed before cutoff.
func (r *HoldRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Hold, error) {
	if limit <= 0 {
		limit = 100
	}
	var holds []models.Hold
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.HoldStatusPending, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&holds).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query expired holds")
	}
	return holds, nil
}

// MarkConfirmed transitions a pending hold to confirmed.
func (r *HoldRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.HoldStatusConfirmed, map[string]any{
		"status":       enums.HoldStatusConfirmed,
		"confirmed_at": at,
		"updated_at":   at,
	})
}

// MarkReleased transitions a pending hold to released.
func (r *HoldRepository) MarkReleased(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.HoldStatusReleased, map[string]any{
		"status":      enums.HoldStatusReleased,
		"released_at": at,
		"updated_at":  at,
	})
}

// MarkExpired transitions a pending hold to expired.
func (r *HoldRepository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.HoldStatusExpired, map[string]any{
		"status":      enums.HoldStatusExpired,
		"released_at": at,
		"updated_at":  at,
	})
}

// ReleaseConfirmed transitions a confirmed hold to released. Used when a
// settled reservation is cancelled after payment.
func (r *HoldRepository) ReleaseConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Hold{}).
		Where("id = ? AND status = ?", id, enums.HoldStatusConfirmed).
		Updates(map[string]any{
			"status":      enums.HoldStatusReleased,
			"released_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release confirmed hold")
	}
	return res.RowsAffected == 1, nil
}

func (r *HoldRepository) transition(ctx context.Context, id uuid.UUID, to enums.HoldStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Hold{}).
		Where("id = ? AND status = ?", id, enums.HoldStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "transition hold to "+to.String())
	}
	return res.RowsAffected == 1, nil
}
