package payments

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

// IntentRepository persists payment intents. Terminal transitions are guarded
// on the pending status so duplicate gateway notifications settle exactly once.
type IntentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *IntentRepository) WithTx(tx *gorm.DB) *IntentRepository {
	if tx == nil {
		return r
	}
	return &IntentRepository{db: tx}
}

func (r *IntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent == nil {
		return errors.New("intent required")
	}
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	if intent.Status == "" {
		intent.Status = enums.PaymentStatusPending
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *IntentRepository) FindByGatewayCode(ctx context.Context, code string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).First(&intent, "gateway_order_code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment intent")
	}
	return &intent, nil
}

func (r *IntentRepository) FindByTarget(ctx context.Context, targetType enums.PaymentTargetType, targetID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment intent")
	}
	return &intent, nil
}

// MarkTerminalByCode moves a pending intent identified by its gateway code
// into a terminal status. Returns whether this caller performed the move.
func (r *IntentRepository) MarkTerminalByCode(ctx context.Context, code string, to enums.PaymentStatus, at time.Time, reason *string) (bool, error) {
	return r.markTerminal(ctx, r.db.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("gateway_order_code = ? AND status = ?", code, enums.PaymentStatusPending), to, at, reason)
}

// MarkTerminalByID is MarkTerminalByCode keyed on the intent id.
func (r *IntentRepository) MarkTerminalByID(ctx context.Context, id uuid.UUID, to enums.PaymentStatus, at time.Time, reason *string) (bool, error) {
	return r.markTerminal(ctx, r.db.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending), to, at, reason)
}

func (r *IntentRepository) markTerminal(ctx context.Context, query *gorm.DB, to enums.PaymentStatus, at time.Time, reason *string) (bool, error) {
	if !to.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "target payment status is not terminal")
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.PaymentStatusSucceeded:
		updates["succeeded_at"] = at
	case enums.PaymentStatusFailed:
		updates["failed_at"] = at
	case enums.PaymentStatusExpired:
		updates["expired_at"] = at
	}
	if reason != nil {
		updates["failure_reason"] = *reason
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "transition payment intent")
	}
	return res.RowsAffected == 1, nil
}

func (r *IntentRepository) UpdateCheckoutURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("id = ?", id).
		Update("checkout_url", url).Error
}
