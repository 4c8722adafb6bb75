package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pitchpoint/pitchpoint-backend/api/responses"
	"github.com/pitchpoint/pitchpoint-backend/api/validators"
	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

type BookingService interface {
	FulfillBooking(ctx context.Context, req fulfillment.BookingRequest) (*fulfillment.BookingResult, error)
}

type BookingCanceller interface {
	CancelBooking(ctx context.Context, bookingID, guestID uuid.UUID, reason string) error
}

// CreateBooking reserves a site window and, for card payments, hands back the
// hosted checkout link.
func CreateBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		var payload createBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		checkIn, checkOut, err := parseDateWindow(payload.CheckIn, payload.CheckOut)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.FulfillBooking(ctx, fulfillment.BookingRequest{
			GuestID:  payload.GuestID,
			SiteID:   payload.SiteID,
			CheckIn:  checkIn,
			CheckOut: checkOut,
			Units:    payload.Units,
			Method:   method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBookingResponse(result))
	}
}

// CancelBooking releases a guest's booking and the capacity behind it.
func CancelBooking(svc BookingCanceller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking id"))
			return
		}

		var payload cancelBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		reason := payload.Reason
		if reason == "" {
			reason = "cancelled by guest"
		}
		if err := svc.CancelBooking(ctx, bookingID, payload.GuestID, reason); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

type createBookingRequest struct {
	GuestID       uuid.UUID `json:"guest_id" validate:"required,uuid4"`
	SiteID        uuid.UUID `json:"site_id" validate:"required,uuid4"`
	CheckIn       string    `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut      string    `json:"check_out" validate:"required,datetime=2006-01-02"`
	Units         int       `json:"units" validate:"required,min=1"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
}

type cancelBookingRequest struct {
	GuestID uuid.UUID `json:"guest_id" validate:"required,uuid4"`
	Reason  string    `json:"reason" validate:"omitempty,max=200"`
}

type bookingResponse struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	Status        string     `json:"status"`
	SiteID        uuid.UUID  `json:"site_id"`
	CheckIn       string     `json:"check_in"`
	CheckOut      string     `json:"check_out"`
	Units         int        `json:"units"`
	TotalCents    int        `json:"total_cents"`
	Total         string     `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	CheckoutURL   *string    `json:"checkout_url,omitempty"`
}

func newBookingResponse(result *fulfillment.BookingResult) bookingResponse {
	if result == nil || result.Booking == nil {
		return bookingResponse{}
	}
	resp := bookingResponse{
		BookingID:     result.Booking.ID,
		Status:        string(result.Booking.Status),
		SiteID:        result.Booking.SiteID,
		CheckIn:       result.Booking.CheckIn.Format(dateLayout),
		CheckOut:      result.Booking.CheckOut.Format(dateLayout),
		Units:         result.Booking.Units,
		TotalCents:    result.Booking.TotalCents,
		Total:         formatCents(result.Booking.TotalCents),
		PaymentMethod: string(result.Booking.PaymentMethod),
		CheckoutURL:   result.CheckoutURL,
	}
	if result.Hold != nil && result.Booking.Status == enums.BookingStatusPendingPayment {
		expires := result.Hold.ExpiresAt
		resp.HoldExpiresAt = &expires
	}
	return resp
}

// formatCents renders a cent amount as a decimal dollar string.
func formatCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Shift(-2).StringFixed(2)
}

func parseDateWindow(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid start date")
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid end date")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "window end must be after start")
	}
	return start, end, nil
}
