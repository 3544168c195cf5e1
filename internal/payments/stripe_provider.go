package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/deskforge/api/internal/services"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	Intents  stripePaymentIntentAPI
}

// StripeProvider prepares payment intents for invoiced work orders via the Stripe API.
type StripeProvider struct {
	intents stripePaymentIntentAPI
	clock   func() time.Time
	logger  StripeLogger
}

var _ services.PaymentProvider = (*StripeProvider)(nil)

// NewStripeProvider constructs a Stripe payment provider from the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents: intents,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent for the requested charge.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req services.PaymentIntentRequest) (services.PaymentIntentResult, error) {
	if p == nil || p.intents == nil {
		return services.PaymentIntentResult{}, errors.New("stripe: provider not initialised")
	}
	if req.Amount <= 0 {
		return services.PaymentIntentResult{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return services.PaymentIntentResult{}, errors.New("stripe: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = stripe.String(desc)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	for name, value := range req.Metadata {
		params.AddMetadata(name, value)
	}

	intent, err := p.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			p.logger(ctx, "stripe.payment_intent.failed", map[string]any{
				"code":   string(stripeErr.Code),
				"status": stripeErr.HTTPStatusCode,
			})
			return services.PaymentIntentResult{}, fmt.Errorf("stripe: create payment intent: %s", stripeErr.Code)
		}
		return services.PaymentIntentResult{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	if intent == nil || intent.ID == "" {
		return services.PaymentIntentResult{}, errors.New("stripe: empty payment intent response")
	}

	p.logger(ctx, "stripe.payment_intent.created", map[string]any{
		"intent_id": intent.ID,
		"amount":    req.Amount,
		"currency":  currency,
		"at":        p.clock().Format(time.RFC3339),
	})

	return services.PaymentIntentResult{
		ProviderID:   intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}
