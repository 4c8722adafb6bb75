package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pitchpoint/pitchpoint-backend/api/responses"
	squarewebhook "github.com/pitchpoint/pitchpoint-backend/internal/webhooks/square"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
)

const signatureHeader = "Square-Signature"

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.WebhookEvent) error
}

type squareWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type squareClient interface {
	SigningSecret() string
}

// SquareWebhook ingests Square payment notifications. Authentic events always
// get a 200, including ones whose reservation code resolves to nothing; a
// non-200 tells Square to retry, and a retry only helps when the failure was
// on our side.
func SquareWebhook(svc SquareWebhookService, client squareClient, guard squareWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		event, payloadErr := authenticEvent(r, client.SigningSecret())
		if payloadErr != nil {
			responses.WriteError(ctx, logg, w, payloadErr)
			return
		}

		eventID := resolveEventID(event)
		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			// Unmark so Square's retry of this event is reprocessed.
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("square event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

// authenticEvent reads the raw body, checks the signature over it, and decodes
// the event. The signature must be computed over the exact bytes Square sent,
// so the body is read before any decoding.
func authenticEvent(r *http.Request, secret string) (*squarewebhook.WebhookEvent, error) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}

	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square signature missing")
	}
	if !signatureMatches(payload, secret, sig) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invalid square signature")
	}

	var event squarewebhook.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode event")
	}
	return &event, nil
}

// resolveEventID falls back to the data object id for events Square sends
// without a top-level event id.
func resolveEventID(event *squarewebhook.WebhookEvent) string {
	if id := strings.TrimSpace(event.EventID); id != "" {
		return id
	}
	return event.Data.ID
}

func signatureMatches(payload []byte, secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}
