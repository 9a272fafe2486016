package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe implements Provider with Stripe payment intents. Amounts are
// already in øre, which matches Stripe's minor-unit convention for NOK.
type Stripe struct {
	WebhookSecret string
}

// NewStripe configures the global Stripe client key and returns the
// provider.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{WebhookSecret: webhookSecret}
}

// Name identifies the provider in order rows and metrics.
func (s *Stripe) Name() string { return "stripe" }

// CreateIntent opens a payment intent for the order total.
func (s *Stripe) CreateIntent(ctx context.Context, in IntentInput) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", in.OrderID)
	params.AddMetadata("org", in.Org)

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("payment: create stripe intent: %w", err)
	}
	return Intent{Provider: s.Name(), Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// VerifyWebhook checks the Stripe-Signature header and returns the decoded
// event.
func (s *Stripe) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.WebhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("payment: verify webhook: %w", err)
	}
	return event, nil
}
