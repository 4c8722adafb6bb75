package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/api/responses"
	"github.com/pitchpoint/pitchpoint-backend/internal/availability"
	pkgerrors "github.com/pitchpoint/pitchpoint-backend/pkg/errors"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
)

type AvailabilityIndex interface {
	SiteWindow(ctx context.Context, siteID uuid.UUID, from, to time.Time) ([]availability.NightAvailability, error)
}

// SiteAvailability reports per-night remaining capacity for a site over a
// half-open [from, to) window.
func SiteAvailability(idx AvailabilityIndex, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if idx == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability index unavailable"))
			return
		}

		siteID, err := uuid.Parse(chi.URLParam(r, "siteID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid site id"))
			return
		}

		query := r.URL.Query()
		from, to, err := parseDateWindow(query.Get("from"), query.Get("to"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		nights, err := idx.SiteWindow(ctx, siteID, from, to)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAvailabilityResponse(siteID, nights))
	}
}

type availabilityResponse struct {
	SiteID uuid.UUID       `json:"site_id"`
	Nights []nightResponse `json:"nights"`
}

type nightResponse struct {
	Night      string `json:"night"`
	Capacity   int    `json:"capacity"`
	Booked     int    `json:"booked"`
	Remaining  int    `json:"remaining"`
	Blocked    bool   `json:"blocked"`
	PriceCents int    `json:"price_cents"`
}

func newAvailabilityResponse(siteID uuid.UUID, nights []availability.NightAvailability) availabilityResponse {
	out := make([]nightResponse, 0, len(nights))
	for _, n := range nights {
		out = append(out, nightResponse{
			Night:      n.Night.Format(dateLayout),
			Capacity:   n.Capacity,
			Booked:     n.Booked,
			Remaining:  n.Remaining,
			Blocked:    n.Blocked,
			PriceCents: n.PriceCents,
		})
	}
	return availabilityResponse{SiteID: siteID, Nights: out}
}
