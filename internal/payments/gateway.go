package payments

import (
	"context"
	"errors"

	"github.com/pitchpoint/pitchpoint-backend/pkg/square"
)

// CheckoutLinkParams describe the hosted checkout page for one reservation.
type CheckoutLinkParams struct {
	Name        string
	AmountCents int
	Reference   string
}

// CheckoutGateway produces a redirect URL the guest completes payment on.
type CheckoutGateway interface {
	CreateCheckoutLink(ctx context.Context, params CheckoutLinkParams) (string, error)
}

// SquareGateway adapts the Square wrapper to the checkout surface the engine needs.
type SquareGateway struct {
	client      *square.Client
	redirectURL string
	currency    string
}

func NewSquareGateway(client *square.Client, redirectURL string) (*SquareGateway, error) {
	if client == nil {
		return nil, errors.New("square client required")
	}
	return &SquareGateway{client: client, redirectURL: redirectURL, currency: "USD"}, nil
}

func (g *SquareGateway) CreateCheckoutLink(ctx context.Context, params CheckoutLinkParams) (string, error) {
	link, err := g.client.CreatePaymentLink(ctx, square.PaymentLinkCreateParams{
		Name:        params.Name,
		AmountCents: int64(params.AmountCents),
		Currency:    g.currency,
		ReferenceID: params.Reference,
		RedirectURL: g.redirectURL,
	})
	if err != nil {
		return "", err
	}
	if link == nil || link.GetURL() == nil {
		return "", errors.New("square returned no payment link url")
	}
	return *link.GetURL(), nil
}
