package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// Checkout is the result of starting a purchase: the caller redirects the
// user to RedirectURL and the provider later confirms via webhook.
type Checkout struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
}

// Provider starts checkouts with an external payment gateway.
type Provider interface {
	CreateCheckout(ctx context.Context, userID int64, pkg Package) (*Checkout, error)
}

// OmiseProvider charges through Omise. The charge carries the user and
// package ids as metadata so the webhook can credit the right ledger.
type OmiseProvider struct {
	client    *omise.Client
	returnURI string
}

// NewOmiseProvider wraps an Omise client. returnURI is where the gateway
// sends the user after authorization.
func NewOmiseProvider(client *omise.Client, returnURI string) *OmiseProvider {
	return &OmiseProvider{client: client, returnURI: returnURI}
}

func (p *OmiseProvider) CreateCheckout(ctx context.Context, userID int64, pkg Package) (*Checkout, error) {
	src := &omise.Source{}
	if err := p.client.Do(src, &operations.CreateSource{
		Type:     "promptpay",
		Amount:   int64(pkg.Price),
		Currency: "jpy",
	}); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	ch := &omise.Charge{}
	if err := p.client.Do(ch, &operations.CreateCharge{
		Amount:    int64(pkg.Price),
		Currency:  "jpy",
		Source:    src.ID,
		ReturnURI: p.returnURI,
		Metadata: map[string]interface{}{
			"user_id":    strconv.FormatInt(userID, 10),
			"package_id": pkg.ID,
		},
	}); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}

	redirect := ch.AuthorizeURI
	if redirect == "" {
		redirect = p.returnURI
	}
	return &Checkout{ID: ch.ID, RedirectURL: redirect}, nil
}

// StubProvider fakes checkouts for development and tests. Every checkout
// "succeeds" immediately at a placeholder URL; no money moves.
type StubProvider struct{}

func (StubProvider) CreateCheckout(ctx context.Context, userID int64, pkg Package) (*Checkout, error) {
	id := "stub-" + uuid.NewString()
	return &Checkout{
		ID:          id,
		RedirectURL: fmt.Sprintf("https://checkout.invalid/%s?package=%s", id, pkg.ID),
	}, nil
}
