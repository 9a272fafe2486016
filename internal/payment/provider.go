// Package payment connects orders to an external payment provider and
// processes the provider's webhooks into order status transitions.
package payment

import "context"

// IntentInput describes the charge to set up.
type IntentInput struct {
	OrderID  string
	Org      string
	Amount   int64
	Currency string
}

// Intent is the provider-side payment handle the client completes.
type Intent struct {
	Provider     string `json:"provider"`
	Ref          string `json:"ref"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Provider creates payment intents with an external processor.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, in IntentInput) (Intent, error)
}
