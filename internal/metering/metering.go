// Package metering emits pay-as-you-go meter events to Stripe. Emission is
// fire-and-forget: failures are logged and counted, never propagated.
package metering

import (
	"context"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/billing/meterevent"
)

// Meter event names.
const (
	EventPAYGApp  = "pay_as_you_go_app"
	EventPAYGUser = "pay_as_you_go_user"
)

// Event is one meter event. The identifier doubles as the Stripe idempotency
// key, so re-sending the same event is harmless.
type Event struct {
	Name       string
	CustomerID string
	ValueKey   string // payload key carrying the unit count: "value" or "users"
	Identifier string
	Timestamp  time.Time
}

// AppIdentifier builds the deterministic idempotency key for an app event.
func AppIdentifier(orgID, month, appKey string) string {
	return orgID + "_" + month + "_app_" + appKey
}

// UserIdentifier builds the deterministic idempotency key for a user event.
func UserIdentifier(orgID, month, email string) string {
	return orgID + "_" + month + "_user_" + email
}

// Sender submits meter events.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Stripe sends meter events through the Stripe API.
type Stripe struct {
	client meterevent.Client
}

// NewStripe creates a Stripe sender authenticated with the given secret key.
func NewStripe(secretKey string) *Stripe {
	return &Stripe{
		client: meterevent.Client{
			B:   stripelib.GetBackend(stripelib.APIBackend),
			Key: secretKey,
		},
	}
}

// Send implements Sender.
func (s *Stripe) Send(ctx context.Context, ev Event) error {
	params := &stripelib.BillingMeterEventParams{
		EventName:  stripelib.String(ev.Name),
		Identifier: stripelib.String(ev.Identifier),
		Timestamp:  stripelib.Int64(ev.Timestamp.Unix()),
		Payload: map[string]string{
			"stripe_customer_id": ev.CustomerID,
			ev.ValueKey:          "1",
		},
	}
	params.Context = ctx
	_, err := s.client.New(params)
	return err
}
