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

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/internal/reservations"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

type fakeBookingService struct {
	req    fulfillment.BookingRequest
	result *fulfillment.BookingResult
	err    error
}

func (f *fakeBookingService) FulfillBooking(ctx context.Context, req fulfillment.BookingRequest) (*fulfillment.BookingResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeBookingCanceller struct {
	bookingID uuid.UUID
	guestID   uuid.UUID
	reason    string
	err       error
}

func (f *fakeBookingCanceller) CancelBooking(ctx context.Context, bookingID, guestID uuid.UUID, reason string) error {
	f.bookingID = bookingID
	f.guestID = guestID
	f.reason = reason
	return f.err
}

func TestCreateBooking(t *testing.T) {
	guestID := uuid.New()
	siteID := uuid.New()
	checkoutURL := "https://square.link/pay"
	svc := &fakeBookingService{
		result: &fulfillment.BookingResult{
			Booking: &models.Booking{
				ID:            uuid.New(),
				SiteID:        siteID,
				GuestID:       guestID,
				Status:        enums.BookingStatusPendingPayment,
				CheckIn:       time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
				CheckOut:      time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC),
				Units:         1,
				TotalCents:    5000,
				PaymentMethod: enums.PaymentMethodCard,
			},
			Hold:        &models.Hold{ExpiresAt: time.Now().Add(30 * time.Minute)},
			CheckoutURL: &checkoutURL,
		},
	}

	body := fmt.Sprintf(`{"guest_id":%q,"site_id":%q,"check_in":"2026-07-10","check_out":"2026-07-12","units":1,"payment_method":"card"}`, guestID, siteID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	CreateBooking(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.req.SiteID != siteID || svc.req.Units != 1 || svc.req.Method != enums.PaymentMethodCard {
		t.Fatalf("request not forwarded: %+v", svc.req)
	}
	if !svc.req.CheckOut.After(svc.req.CheckIn) {
		t.Fatalf("dates not parsed: %+v", svc.req)
	}

	var envelope struct {
		Data bookingResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalCents != 5000 || envelope.Data.CheckoutURL == nil {
		t.Fatalf("unexpected response: %+v", envelope.Data)
	}
	if envelope.Data.Total != "50.00" {
		t.Fatalf("expected total 50.00, got %q", envelope.Data.Total)
	}
	if envelope.Data.HoldExpiresAt == nil {
		t.Fatalf("pending booking should expose hold expiry")
	}
}

func TestCreateBookingValidation(t *testing.T) {
	svc := &fakeBookingService{}

	cases := []struct {
		name string
		body string
	}{
		{"missing fields", `{}`},
		{"bad method", fmt.Sprintf(`{"guest_id":%q,"site_id":%q,"check_in":"2026-07-10","check_out":"2026-07-12","units":1,"payment_method":"wire"}`, uuid.New(), uuid.New())},
		{"inverted window", fmt.Sprintf(`{"guest_id":%q,"site_id":%q,"check_in":"2026-07-12","check_out":"2026-07-10","units":1,"payment_method":"card"}`, uuid.New(), uuid.New())},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString(tc.body))
		rec := httptest.NewRecorder()
		CreateBooking(svc, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (%s)", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateBookingConflict(t *testing.T) {
	svc := &fakeBookingService{err: reservations.NewConflict(enums.ConflictDatesUnavailable, "window no longer available")}

	body := fmt.Sprintf(`{"guest_id":%q,"site_id":%q,"check_in":"2026-07-10","check_out":"2026-07-12","units":1,"payment_method":"card"}`, uuid.New(), uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	CreateBooking(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
	if envelope.Error.Details["reason"] != string(enums.ConflictDatesUnavailable) {
		t.Fatalf("conflict reason missing from details: %+v", envelope.Error.Details)
	}
}

func TestCancelBooking(t *testing.T) {
	svc := &fakeBookingCanceller{}
	bookingID := uuid.New()
	guestID := uuid.New()

	router := chi.NewRouter()
	router.Post("/api/v1/bookings/{bookingID}/cancel", CancelBooking(svc, nil))

	body := fmt.Sprintf(`{"guest_id":%q,"reason":"change of plans"}`, guestID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/cancel", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.bookingID != bookingID || svc.guestID != guestID || svc.reason != "change of plans" {
		t.Fatalf("cancel not forwarded: %+v", svc)
	}
}

func TestCancelBookingInvalidID(t *testing.T) {
	router := chi.NewRouter()
	router.Post("/api/v1/bookings/{bookingID}/cancel", CancelBooking(&fakeBookingCanceller{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/not-a-uuid/cancel", bytes.NewBufferString(`{"guest_id":"`+uuid.NewString()+`"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
