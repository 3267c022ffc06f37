// Package payment defines the narrow capability interface through which
// the application talks to the external payment processor, plus its
// Stripe implementation. The reconciler only ever sees the types below,
// so everything provider-specific stays inside this package.
package payment

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidWebhook is returned when a webhook payload fails signature
// verification or cannot be parsed. Nothing derived from such a payload
// may be trusted.
var ErrInvalidWebhook = errors.New("invalid webhook payload or signature")

// Customer is a payment customer created at the provider.
type Customer struct {
	ID string
}

// CheckoutSession is a provider-hosted checkout flow. URL is the redirect
// target for a newly created session; CustomerRef is filled when the
// session is retrieved after completion.
type CheckoutSession struct {
	ID          string
	URL         string
	CustomerRef string
}

// PortalSession is a provider-hosted billing management page.
type PortalSession struct {
	URL string
}

// WebhookEvent is a verified, parsed provider notification. CustomerRef
// and Status are only populated for subscription lifecycle kinds. ID and
// Created come from the provider envelope and are carried for logging and
// a future sequencing guard.
type WebhookEvent struct {
	ID          string
	Kind        string
	CustomerRef string
	Status      string
	Created     time.Time
}

// CheckoutParams describes a subscription checkout for a single recurring
// price line item.
type CheckoutParams struct {
	CustomerRef string
	PriceRef    string
	SuccessURL  string
	CancelURL   string
}

// Provider is the capability surface of the external payment processor.
// All remote calls honor the passed context for cancellation and timeout.
type Provider interface {
	CreateCustomer(ctx context.Context, email string) (Customer, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (PortalSession, error)
	ParseWebhookEvent(payload []byte, sigHeader string) (WebhookEvent, error)
}
