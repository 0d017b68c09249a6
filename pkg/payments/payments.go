// Package payments captures payment for placed orders. Payment is optional:
// when no processor is configured the agent places orders without charging,
// matching a demo or staging deployment.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
)

// Charge is the outcome of a successful capture.
type Charge struct {
	PaymentID string
	Amount    int64
	Currency  string
}

// Charger captures payment for an order.
type Charger interface {
	// Charge captures amount (in the currency's smallest unit) for the
	// given customer and order.
	Charge(ctx context.Context, customerID, orderID string, amountCents int64) (*Charge, error)
}

// Stripe charges through Stripe PaymentIntents.
type Stripe struct {
	client   *stripe.Client
	currency string
}

// NewStripe creates a Stripe charger. An empty currency defaults to usd.
func NewStripe(apiKey, currency string) (*Stripe, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe: api key required")
	}
	if currency == "" {
		currency = "usd"
	}
	return &Stripe{client: stripe.NewClient(apiKey), currency: currency}, nil
}

func (s *Stripe) Charge(ctx context.Context, customerID, orderID string, amountCents int64) (*Charge, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id":    orderID,
			"customer_id": customerID,
		},
	}
	intent, err := s.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent for %s: %w", orderID, err)
	}
	return &Charge{
		PaymentID: intent.ID,
		Amount:    amountCents,
		Currency:  s.currency,
	}, nil
}
