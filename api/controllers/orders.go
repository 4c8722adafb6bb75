package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/api/responses"
	"github.com/pitchpoint/pitchpoint-backend/api/validators"
	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
)

type OrderService interface {
	FulfillOrder(ctx context.Context, req fulfillment.OrderRequest) (*fulfillment.OrderResult, error)
}

// CreateOrder reserves gear stock across every line item and, for card
// payments, hands back the hosted checkout link. Admission is all-or-nothing:
// one short line rejects the whole order.
func CreateOrder(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		lines := make([]fulfillment.OrderLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, fulfillment.OrderLine{
				ProductID: line.ProductID,
				Qty:       line.Qty,
			})
		}

		result, err := svc.FulfillOrder(ctx, fulfillment.OrderRequest{
			GuestID: payload.GuestID,
			Lines:   lines,
			Method:  method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(result))
	}
}

type createOrderRequest struct {
	GuestID       uuid.UUID          `json:"guest_id" validate:"required,uuid4"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
	Lines         []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type orderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required,uuid4"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type orderResponse struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	SubtotalCents int                 `json:"subtotal_cents"`
	TotalCents    int                 `json:"total_cents"`
	Total         string              `json:"total"`
	Items         []orderItemResponse `json:"items"`
	HoldExpiresAt *time.Time          `json:"hold_expires_at,omitempty"`
	CheckoutURL   *string             `json:"checkout_url,omitempty"`
}

type orderItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

func newOrderResponse(result *fulfillment.OrderResult) orderResponse {
	if result == nil || result.Order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(result.Order.Items))
	for _, item := range result.Order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	resp := orderResponse{
		OrderID:       result.Order.ID,
		Status:        string(result.Order.Status),
		PaymentMethod: string(result.Order.PaymentMethod),
		SubtotalCents: result.Order.SubtotalCents,
		TotalCents:    result.Order.TotalCents,
		Total:         formatCents(result.Order.TotalCents),
		Items:         items,
		CheckoutURL:   result.CheckoutURL,
	}
	if len(result.Holds) > 0 && result.Intent != nil {
		expires := result.Holds[0].ExpiresAt
		resp.HoldExpiresAt = &expires
	}
	return resp
}
