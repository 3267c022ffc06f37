package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/payment"
	"github.com/iliyamo/account-service/internal/queue"
)

// ErrNoCustomer is returned when an operation requires an existing payment
// customer reference and the user has none.
var ErrNoCustomer = errors.New("user has no payment customer")

// EventPublisher sends subscription change notifications to the broker.
// *queue.Publisher satisfies it; a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.SubscriptionChangedEvent) error
}

// BillingReconciler keeps is_subscribed and the payment customer
// reference consistent with the provider's view. Webhook deliveries may
// arrive duplicated or out of order, so every applied event is a
// full-state overwrite of the subscription flag, never an increment.
type BillingReconciler struct {
	store    UserStore
	provider payment.Provider
	events   EventPublisher
	priceRef string
	baseURL  string
}

func NewBillingReconciler(store UserStore, provider payment.Provider, events EventPublisher, priceRef, baseURL string) *BillingReconciler {
	return &BillingReconciler{store: store, provider: provider, events: events, priceRef: priceRef, baseURL: baseURL}
}

// EnsureCustomer returns the user's payment customer reference, creating
// one at the provider first if none is stored. The conditional write means
// a concurrent request that already persisted a reference wins; this call
// then returns the stored value instead of overwriting it. No local state
// changes unless the provider call succeeded.
func (b *BillingReconciler) EnsureCustomer(ctx context.Context, u model.User) (string, error) {
	if ref := u.CustomerRef(); ref != "" {
		return ref, nil
	}
	cust, err := b.provider.CreateCustomer(ctx, u.Username)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	won, err := b.store.SetCustomerRefIfEmpty(ctx, u.Username, cust.ID)
	if err != nil {
		return "", fmt.Errorf("save customer ref: %w", err)
	}
	if !won {
		// Another request persisted a reference first; use that one.
		cur, err := b.store.GetByUsername(ctx, u.Username)
		if err != nil {
			return "", fmt.Errorf("reload user: %w", err)
		}
		if ref := cur.CustomerRef(); ref != "" {
			return ref, nil
		}
	}
	return cust.ID, nil
}

// StartCheckout creates a provider checkout session for the configured
// recurring price and returns the redirect URL. Local state is not touched
// beyond customer creation; the subscription flag only flips once
// completion is confirmed.
func (b *BillingReconciler) StartCheckout(ctx context.Context, u model.User) (string, error) {
	ref, err := b.EnsureCustomer(ctx, u)
	if err != nil {
		return "", err
	}
	s, err := b.provider.CreateCheckoutSession(ctx, payment.CheckoutParams{
		CustomerRef: ref,
		PriceRef:    b.priceRef,
		// {CHECKOUT_SESSION_ID} is substituted by the provider on redirect.
		SuccessURL: b.baseURL + "/api/payment/success/?username=" + url.QueryEscape(u.Username) + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  b.baseURL + "/api/payment/cancel/",
	})
	if err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	return s.URL, nil
}

// ConfirmCheckout finalizes a completed checkout: it retrieves the session
// from the provider, marks the user subscribed and backfills the customer
// reference if it was empty. Confirming the same session again is a no-op
// in effect, so redirect retries and double-clicks are safe.
func (b *BillingReconciler) ConfirmCheckout(ctx context.Context, username, sessionRef string) error {
	u, err := b.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	s, err := b.provider.GetCheckoutSession(ctx, sessionRef)
	if err != nil {
		return fmt.Errorf("retrieve checkout: %w", err)
	}
	if err := b.store.MarkSubscribed(ctx, u.Username, s.CustomerRef); err != nil {
		return fmt.Errorf("mark subscribed: %w", err)
	}
	if !u.IsSubscribed {
		ref := s.CustomerRef
		if ref == "" {
			ref = u.CustomerRef()
		}
		b.publish(ctx, queue.SubscriptionChangedEvent{
			Username:    u.Username,
			CustomerRef: ref,
			Active:      true,
			Source:      "checkout",
			OccurredAt:  time.Now().UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// ApplyWebhookEvent verifies and applies a provider webhook. Subscription
// lifecycle events overwrite is_subscribed with (status == "active") for
// the user matched by customer reference; last write wins, so duplicates
// and same-status redeliveries are harmless. Unmatched customers and
// unknown event kinds are acknowledged without error because the provider
// expects a 2xx to stop retrying.
func (b *BillingReconciler) ApplyWebhookEvent(ctx context.Context, payload []byte, sigHeader string) error {
	ev, err := b.provider.ParseWebhookEvent(payload, sigHeader)
	if err != nil {
		return err
	}
	switch ev.Kind {
	case "customer.subscription.updated", "customer.subscription.deleted":
		if ev.CustomerRef == "" {
			return nil
		}
		active := ev.Status == "active"
		n, err := b.store.SetSubscribedByCustomer(ctx, ev.CustomerRef, active)
		if err != nil {
			return fmt.Errorf("apply subscription status: %w", err)
		}
		if n > 0 {
			b.publish(ctx, queue.SubscriptionChangedEvent{
				CustomerRef: ev.CustomerRef,
				Active:      active,
				Source:      "webhook",
				EventID:     ev.ID,
				OccurredAt:  time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
	return nil
}

// OpenBillingPortal returns a provider-hosted billing management URL. The
// user must already have a payment customer reference.
func (b *BillingReconciler) OpenBillingPortal(ctx context.Context, u model.User) (string, error) {
	ref := u.CustomerRef()
	if ref == "" {
		return "", ErrNoCustomer
	}
	s, err := b.provider.CreatePortalSession(ctx, ref, b.baseURL+"/profile")
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return s.URL, nil
}

// publish is best effort: a broker outage must not fail the billing
// transition that triggered the event.
func (b *BillingReconciler) publish(ctx context.Context, ev queue.SubscriptionChangedEvent) {
	if b.events == nil {
		return
	}
	if err := b.events.Publish(ctx, ev); err != nil {
		log.Printf("billing: publish subscription event failed: %v", err)
	}
}
