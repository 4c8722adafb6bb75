package squarewebhook

import (
	"context"
	"testing"

	"github.com/pitchpoint/pitchpoint-backend/internal/payments"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
)

type fakeReconciler struct {
	calls []payments.ReconcileParams
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, params payments.ReconcileParams) (*payments.ReconcileResult, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.ReconcileResult{Intent: &models.PaymentIntent{}, Applied: true}, nil
}

func newTestService(t *testing.T, rec *fakeReconciler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Reconciler: rec})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func paymentEvent(status, note string) *WebhookEvent {
	return &WebhookEvent{
		EventID: "evt-1",
		Type:    "payment.updated",
		Data: WebhookData{
			Type: "payment",
			ID:   "pay-1",
			Object: WebhookObject{
				Payment: &PaymentPayload{ID: "pay-1", Status: status, Note: note},
			},
		},
	}
}

func TestHandleEventCompleted(t *testing.T) {
	rec := &fakeReconciler{}
	svc := newTestService(t, rec)

	if err := svc.HandleEvent(context.Background(), paymentEvent("COMPLETED", "pp-abc")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("reconcile calls = %d", len(rec.calls))
	}
	call := rec.calls[0]
	if call.GatewayCode != "pp-abc" || call.Outcome != enums.PaymentStatusSucceeded {
		t.Fatalf("unexpected call: %+v", call)
	}
}

func TestHandleEventFailedCarriesReason(t *testing.T) {
	rec := &fakeReconciler{}
	svc := newTestService(t, rec)

	if err := svc.HandleEvent(context.Background(), paymentEvent("CANCELED", "pp-abc")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	call := rec.calls[0]
	if call.Outcome != enums.PaymentStatusFailed {
		t.Fatalf("outcome = %s", call.Outcome)
	}
	if call.Reason == "" {
		t.Fatal("failed settlement needs a reason")
	}
}

func TestHandleEventIgnoresNonTerminalStatus(t *testing.T) {
	rec := &fakeReconciler{}
	svc := newTestService(t, rec)

	if err := svc.HandleEvent(context.Background(), paymentEvent("APPROVED", "pp-abc")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("non-terminal status must not reconcile, calls = %d", len(rec.calls))
	}
}

func TestHandleEventSwallowsUnknownCode(t *testing.T) {
	rec := &fakeReconciler{err: pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")}
	svc := newTestService(t, rec)

	// The gateway must still get a success response, so the unknown code is
	// logged and no error surfaces.
	if err := svc.HandleEvent(context.Background(), paymentEvent("COMPLETED", "pp-unknown")); err != nil {
		t.Fatalf("unknown code must not error: %v", err)
	}
}

func TestHandleEventPropagatesInternalErrors(t *testing.T) {
	rec := &fakeReconciler{err: pkgerrors.New(pkgerrors.CodeInternal, "db down")}
	svc := newTestService(t, rec)

	if err := svc.HandleEvent(context.Background(), paymentEvent("COMPLETED", "pp-abc")); err == nil {
		t.Fatal("transient failures must surface so the gateway retries")
	}
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	rec := &fakeReconciler{}
	svc := newTestService(t, rec)

	event := &WebhookEvent{Type: "refund.updated"}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("unrelated event must not reconcile, calls = %d", len(rec.calls))
	}
}

func TestHandleEventMissingNote(t *testing.T) {
	rec := &fakeReconciler{}
	svc := newTestService(t, rec)

	err := svc.HandleEvent(context.Background(), paymentEvent("COMPLETED", " "))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
