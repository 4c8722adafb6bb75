package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/internal/reservations"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

type fakeOrderService struct {
	req    fulfillment.OrderRequest
	result *fulfillment.OrderResult
	err    error
}

func (f *fakeOrderService) FulfillOrder(ctx context.Context, req fulfillment.OrderRequest) (*fulfillment.OrderResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestCreateOrder(t *testing.T) {
	guestID := uuid.New()
	productID := uuid.New()
	checkoutURL := "https://square.link/pay"
	svc := &fakeOrderService{
		result: &fulfillment.OrderResult{
			Order: &models.Order{
				ID:            uuid.New(),
				GuestID:       guestID,
				Status:        enums.OrderStatusPendingPayment,
				PaymentMethod: enums.PaymentMethodCard,
				SubtotalCents: 3000,
				TotalCents:    3000,
				Items: []models.OrderLineItem{
					{ProductID: productID, Name: "Lantern", Qty: 2, UnitPriceCents: 1500, TotalCents: 3000},
				},
			},
			Holds:       []*models.Hold{{ExpiresAt: time.Now().Add(30 * time.Minute)}},
			Intent:      &models.PaymentIntent{GatewayOrderCode: "pp-test"},
			CheckoutURL: &checkoutURL,
		},
	}

	body := fmt.Sprintf(`{"guest_id":%q,"payment_method":"card","lines":[{"product_id":%q,"qty":2}]}`, guestID, productID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	CreateOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.req.Lines) != 1 || svc.req.Lines[0].Qty != 2 || svc.req.Lines[0].ProductID != productID {
		t.Fatalf("lines not forwarded: %+v", svc.req)
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalCents != 3000 || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected response: %+v", envelope.Data)
	}
	if envelope.Data.CheckoutURL == nil || envelope.Data.HoldExpiresAt == nil {
		t.Fatalf("card order should expose checkout link and hold expiry: %+v", envelope.Data)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := &fakeOrderService{}

	cases := []struct {
		name string
		body string
	}{
		{"no lines", fmt.Sprintf(`{"guest_id":%q,"payment_method":"card","lines":[]}`, uuid.New())},
		{"zero qty", fmt.Sprintf(`{"guest_id":%q,"payment_method":"card","lines":[{"product_id":%q,"qty":0}]}`, uuid.New(), uuid.New())},
		{"bad method", fmt.Sprintf(`{"guest_id":%q,"payment_method":"barter","lines":[{"product_id":%q,"qty":1}]}`, uuid.New(), uuid.New())},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(tc.body))
		rec := httptest.NewRecorder()
		CreateOrder(svc, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateOrderOutOfStock(t *testing.T) {
	svc := &fakeOrderService{err: reservations.NewConflict(enums.ConflictOutOfStock, "insufficient stock")}

	body := fmt.Sprintf(`{"guest_id":%q,"payment_method":"card","lines":[{"product_id":%q,"qty":5}]}`, uuid.New(), uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	CreateOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Details["reason"] != string(enums.ConflictOutOfStock) {
		t.Fatalf("conflict reason missing: %+v", envelope.Error.Details)
	}
}
