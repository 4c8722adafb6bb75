package squarewebhook

import (
	"context"
	"strings"

	"github.com/pitchpoint/pitchpoint-backend/internal/payments"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, params payments.ReconcileParams) (*payments.ReconcileResult, error)
}

type ServiceParams struct {
	Logger     *logger.Logger
	Reconciler reconciler
}

// Service maps Square payment notifications onto settlement reconciliation.
type Service struct {
	logg       *logger.Logger
	reconciler reconciler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{
		logg:       params.Logger,
		reconciler: params.Reconciler,
	}, nil
}

type WebhookEvent struct {
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	Data    WebhookData `json:"data"`
}

type WebhookData struct {
	Type   string        `json:"type"`
	ID     string        `json:"id"`
	Object WebhookObject `json:"object"`
}

type WebhookObject struct {
	Payment *PaymentPayload `json:"payment"`
}

// PaymentPayload is the slice of Square's payment object the engine reads.
// Note carries the gateway order code set when the payment link was created.
type PaymentPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Note   string `json:"note"`
}

// HandleEvent processes Square payment events. An unknown gateway order code
// is logged as an operational anomaly and swallowed so the gateway stops
// retrying a notification that can never succeed.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		return s.handlePayment(ctx, event.Data.Object.Payment)
	default:
		return nil
	}
}

func (s *Service) handlePayment(ctx context.Context, payment *PaymentPayload) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}

	var outcome enums.PaymentStatus
	switch strings.ToUpper(payment.Status) {
	case "COMPLETED":
		outcome = enums.PaymentStatusSucceeded
	case "FAILED", "CANCELED":
		outcome = enums.PaymentStatusFailed
	default:
		// APPROVED and PENDING precede the terminal notification.
		return nil
	}

	code := strings.TrimSpace(payment.Note)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment note carries no order code")
	}

	reason := ""
	if outcome == enums.PaymentStatusFailed {
		reason = "gateway reported " + strings.ToUpper(payment.Status)
	}

	result, err := s.reconciler.Reconcile(ctx, payments.ReconcileParams{
		GatewayCode: code,
		Outcome:     outcome,
		Reason:      reason,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"gateway_order_code": code,
					"payment_id":         payment.ID,
				})
				s.logg.Warn(logCtx, "gateway referenced an unknown order code")
			}
			return nil
		}
		return err
	}
	if !result.Applied && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "gateway_order_code", code)
		s.logg.Info(logCtx, "settlement already applied; duplicate notification ignored")
	}
	return nil
}
