package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider against the Stripe API. The client
// is initialized once with the API key; every call attaches the caller's
// context so outbound requests are bounded by the request timeout.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(apiKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email string) (Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	c, err := p.api.Customers.New(params)
	if err != nil {
		return Customer{}, fmt.Errorf("stripe create customer: %w", err)
	}
	return Customer{ID: c.ID}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(cp.CustomerRef),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(cp.PriceRef), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(cp.SuccessURL),
		CancelURL:  stripe.String(cp.CancelURL),
	}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return checkoutSessionFromStripe(s), nil
}

func (p *StripeProvider) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe retrieve checkout session: %w", err)
	}
	return checkoutSessionFromStripe(s), nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return PortalSession{}, fmt.Errorf("stripe create billing portal session: %w", err)
	}
	return PortalSession{URL: s.URL}, nil
}

// ParseWebhookEvent verifies the payload signature against the webhook
// secret before reading any field. For subscription lifecycle events the
// customer reference and status are extracted; other kinds pass through
// with just the envelope so the reconciler can acknowledge them.
func (p *StripeProvider) ParseWebhookEvent(payload []byte, sigHeader string) (WebhookEvent, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	out := WebhookEvent{
		ID:      ev.ID,
		Kind:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
	}
	switch out.Kind {
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
		}
		if sub.Customer != nil {
			out.CustomerRef = sub.Customer.ID
		}
		out.Status = string(sub.Status)
	}
	return out, nil
}

func checkoutSessionFromStripe(s *stripe.CheckoutSession) CheckoutSession {
	out := CheckoutSession{ID: s.ID, URL: s.URL}
	if s.Customer != nil {
		out.CustomerRef = s.Customer.ID
	}
	return out
}
