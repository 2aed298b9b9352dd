package utils

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"go-storefront/models"
)

// PaymentGateway starts card payments for orders
type PaymentGateway interface {
	CreatePayment(ctx context.Context, amount float64, userID string) (*models.Payment, error)
}

// IsCardPayment reports whether a checkout payment method needs the gateway
func IsCardPayment(method string) bool {
	m := strings.ToLower(strings.TrimSpace(method))
	return m == "card" || m == "credit card" || m == "stripe"
}

// StripeGateway creates Stripe PaymentIntents
type StripeGateway struct {
	api      *client.API
	currency string
}

// NewStripeGateway builds a client for secretKey
func NewStripeGateway(secretKey, currency string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	if currency == "" {
		currency = string(stripe.CurrencyINR)
	}
	return &StripeGateway{api: sc, currency: strings.ToLower(currency)}
}

// CreatePayment creates a PaymentIntent for amount in the smallest currency unit
func (g *StripeGateway) CreatePayment(ctx context.Context, amount float64, userID string) (*models.Payment, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(amount * 100))),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &models.Payment{
		PaymentMethod: "card",
		Amount:        amount,
		Currency:      g.currency,
		Status:        string(pi.Status),
		IntentID:      pi.ID,
		ClientSecret:  pi.ClientSecret,
	}, nil
}
