package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/takigawalab/indexapi/ledger"
	"github.com/takigawalab/indexapi/models"
)

// ChargeEvent is the normalized form of a gateway "charge completed" event.
type ChargeEvent struct {
	EventID   string
	ChargeID  string
	Succeeded bool
	UserID    int64
	PackageID string
}

// EventSource resolves a webhook delivery into a verified ChargeEvent.
// Implementations must not trust the delivery body: they re-fetch the event
// from the gateway by id.
type EventSource interface {
	RetrieveChargeEvent(ctx context.Context, eventID string) (*ChargeEvent, error)
}

// Service starts checkouts and applies confirmed charges to the ledger.
type Service struct {
	provider Provider
	source   EventSource
	events   *EventStore
	ledger   *ledger.Service
}

// New creates a payment service.
func New(provider Provider, source EventSource, events *EventStore, lg *ledger.Service) *Service {
	return &Service{provider: provider, source: source, events: events, ledger: lg}
}

// Checkout starts a purchase of the given package for the user.
func (s *Service) Checkout(ctx context.Context, userID int64, packageID string) (*Checkout, error) {
	pkg, err := PackageByID(packageID)
	if err != nil {
		return nil, err
	}
	return s.provider.CreateCheckout(ctx, userID, pkg)
}

// HandleChargeEvent applies one webhook delivery. The event is verified with
// the gateway, claimed in the processed-event store, and only then credited.
// Replays and non-successful charges are acknowledged without crediting; a
// failed credit releases the claim so the gateway's redelivery retries it.
func (s *Service) HandleChargeEvent(ctx context.Context, eventID string) error {
	ev, err := s.source.RetrieveChargeEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !ev.Succeeded {
		return nil
	}

	pkg, err := PackageByID(ev.PackageID)
	if err != nil {
		return err
	}

	claimed, err := s.events.MarkProcessed(ev.EventID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	desc := fmt.Sprintf("%s (%dpt)", pkg.Label, pkg.Points)
	if _, err := s.ledger.Credit(ctx, ev.UserID, pkg.Points, models.TxPurchase, desc, &ev.PackageID); err != nil {
		if uerr := s.events.Unmark(ev.EventID); uerr != nil {
			return errors.Join(err, uerr)
		}
		return err
	}
	return nil
}

// StubEventSource pairs with StubProvider. There is no gateway to verify
// deliveries against, so every event is acknowledged without crediting.
type StubEventSource struct{}

func (StubEventSource) RetrieveChargeEvent(ctx context.Context, eventID string) (*ChargeEvent, error) {
	return &ChargeEvent{EventID: eventID}, nil
}

// OmiseEventSource verifies webhook deliveries against the Omise API.
type OmiseEventSource struct {
	client *omise.Client
}

// NewOmiseEventSource wraps an Omise client.
func NewOmiseEventSource(client *omise.Client) *OmiseEventSource {
	return &OmiseEventSource{client: client}
}

func (s *OmiseEventSource) RetrieveChargeEvent(ctx context.Context, eventID string) (*ChargeEvent, error) {
	ev := &omise.Event{}
	if err := s.client.Do(ev, &operations.RetrieveEvent{EventID: eventID}); err != nil {
		return nil, fmt.Errorf("retrieve event: %w", err)
	}
	if ev.Key != "charge.complete" {
		return &ChargeEvent{EventID: ev.ID}, nil
	}

	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode charge: %w", err)
	}

	out := &ChargeEvent{
		EventID:   ev.ID,
		ChargeID:  ch.ID,
		Succeeded: string(ch.Status) == "successful",
	}
	if uid, _ := ch.Metadata["user_id"].(string); uid != "" {
		if n, err := strconv.ParseInt(uid, 10, 64); err == nil {
			out.UserID = n
		}
	}
	out.PackageID, _ = ch.Metadata["package_id"].(string)
	return out, nil
}
