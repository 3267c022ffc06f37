package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-service/internal/payment"
	"github.com/iliyamo/account-service/internal/queue"
)

// fakeProvider scripts the payment processor's responses.
type fakeProvider struct {
	customerID          string
	createCustomerErr   error
	createCustomerCalls int

	checkout    payment.CheckoutSession
	checkoutErr error

	portalURL string
	portalErr error

	webhookEvent payment.WebhookEvent
	webhookErr   error
}

func (f *fakeProvider) CreateCustomer(context.Context, string) (payment.Customer, error) {
	f.createCustomerCalls++
	if f.createCustomerErr != nil {
		return payment.Customer{}, f.createCustomerErr
	}
	return payment.Customer{ID: f.customerID}, nil
}

func (f *fakeProvider) CreateCheckoutSession(context.Context, payment.CheckoutParams) (payment.CheckoutSession, error) {
	return f.checkout, f.checkoutErr
}

func (f *fakeProvider) GetCheckoutSession(context.Context, string) (payment.CheckoutSession, error) {
	return f.checkout, f.checkoutErr
}

func (f *fakeProvider) CreatePortalSession(context.Context, string, string) (payment.PortalSession, error) {
	return payment.PortalSession{URL: f.portalURL}, f.portalErr
}

func (f *fakeProvider) ParseWebhookEvent([]byte, string) (payment.WebhookEvent, error) {
	return f.webhookEvent, f.webhookErr
}

// fakePublisher collects published events.
type fakePublisher struct {
	events []queue.SubscriptionChangedEvent
}

func (f *fakePublisher) Publish(_ context.Context, ev queue.SubscriptionChangedEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func newReconciler(provider *fakeProvider) (*BillingReconciler, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	pub := &fakePublisher{}
	return NewBillingReconciler(store, provider, pub, "price_123", "http://localhost:8000"), store, pub
}

func seedUser(t *testing.T, store *fakeStore, username, customerRef string) {
	t.Helper()
	if _, err := store.Create(context.Background(), username, "hash"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if customerRef != "" {
		store.users[username].StripeCustomerID = sql.NullString{String: customerRef, Valid: true}
	}
}

func TestEnsureCustomer_ExistingRefSkipsProvider(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{customerID: "cus_new"}
	b, store, _ := newReconciler(provider)
	seedUser(t, store, "a@x.com", "cus_old")

	u, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)

	ref, err := b.EnsureCustomer(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, "cus_old", ref)
	require.Zero(t, provider.createCustomerCalls, "provider must not be called when a ref exists")
}

func TestEnsureCustomer_CreatesAndPersists(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{customerID: "cus_1"}
	b, store, _ := newReconciler(provider)
	seedUser(t, store, "a@x.com", "")

	u, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)

	ref, err := b.EnsureCustomer(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, "cus_1", ref)

	stored, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "cus_1", stored.CustomerRef())
}

func TestEnsureCustomer_ProviderErrorLeavesNoState(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{createCustomerErr: fmt.Errorf("provider down")}
	b, store, _ := newReconciler(provider)
	seedUser(t, store, "a@x.com", "")

	u, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)

	_, err = b.EnsureCustomer(context.Background(), u)
	require.Error(t, err)

	stored, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Empty(t, stored.CustomerRef(), "no customer ref may be persisted on provider failure")
}

func TestStartCheckout_ReturnsRedirectURL(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{
		customerID: "cus_1",
		checkout:   payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"},
	}
	b, store, _ := newReconciler(provider)
	seedUser(t, store, "a@x.com", "")

	u, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)

	url, err := b.StartCheckout(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, "https://checkout.example/cs_1", url)

	// Checkout creation alone must not flip the subscription flag.
	stored, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.False(t, stored.IsSubscribed)
}

func TestConfirmCheckout_IdempotentAndBackfills(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{checkout: payment.CheckoutSession{ID: "cs_1", CustomerRef: "cus_1"}}
	b, store, pub := newReconciler(provider)
	seedUser(t, store, "a@x.com", "")

	require.NoError(t, b.ConfirmCheckout(context.Background(), "a@x.com", "cs_1"))
	require.NoError(t, b.ConfirmCheckout(context.Background(), "a@x.com", "cs_1"))

	stored, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.True(t, stored.IsSubscribed)
	require.Equal(t, "cus_1", stored.CustomerRef())

	// Only the first confirmation is a transition; the retry publishes nothing.
	require.Len(t, pub.events, 1)
	require.Equal(t, "checkout", pub.events[0].Source)
	require.True(t, pub.events[0].Active)
}

func TestConfirmCheckout_UnknownUser(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{checkout: payment.CheckoutSession{CustomerRef: "cus_1"}}
	b, _, _ := newReconciler(provider)

	err := b.ConfirmCheckout(context.Background(), "nobody@x.com", "cs_1")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestApplyWebhook_InvalidSignatureMutatesNothing(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{
		webhookErr: fmt.Errorf("%w: bad signature", payment.ErrInvalidWebhook),
	}
	b, store, pub := newReconciler(provider)
	seedUser(t, store, "a@x.com", "cus_1")
	store.users["a@x.com"].IsSubscribed = true

	err := b.ApplyWebhookEvent(context.Background(), []byte(`{}`), "t=1,v1=bad")
	require.ErrorIs(t, err, payment.ErrInvalidWebhook)

	stored, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.True(t, stored.IsSubscribed, "rejected webhook must not mutate state")
	require.Empty(t, pub.events)
}

func TestApplyWebhook_DeletedThenActive(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	b, store, pub := newReconciler(provider)
	seedUser(t, store, "a@x.com", "cus_1")
	store.users["a@x.com"].IsSubscribed = true

	provider.webhookEvent = payment.WebhookEvent{
		ID: "evt_1", Kind: "customer.subscription.deleted",
		CustomerRef: "cus_1", Status: "canceled",
	}
	require.NoError(t, b.ApplyWebhookEvent(context.Background(), nil, ""))
	stored, _ := store.GetByUsername(context.Background(), "a@x.com")
	require.False(t, stored.IsSubscribed)

	provider.webhookEvent = payment.WebhookEvent{
		ID: "evt_2", Kind: "customer.subscription.updated",
		CustomerRef: "cus_1", Status: "active",
	}
	require.NoError(t, b.ApplyWebhookEvent(context.Background(), nil, ""))
	stored, _ = store.GetByUsername(context.Background(), "a@x.com")
	require.True(t, stored.IsSubscribed)

	require.Len(t, pub.events, 2)
	require.Equal(t, "webhook", pub.events[0].Source)
	require.False(t, pub.events[0].Active)
	require.True(t, pub.events[1].Active)
}

func TestApplyWebhook_UnmatchedCustomerIsNoop(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{webhookEvent: payment.WebhookEvent{
		Kind: "customer.subscription.updated", CustomerRef: "cus_unknown", Status: "active",
	}}
	b, _, pub := newReconciler(provider)

	require.NoError(t, b.ApplyWebhookEvent(context.Background(), nil, ""))
	require.Empty(t, pub.events)
}

func TestApplyWebhook_UnknownKindIsAcknowledged(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{webhookEvent: payment.WebhookEvent{Kind: "invoice.paid"}}
	b, store, pub := newReconciler(provider)
	seedUser(t, store, "a@x.com", "cus_1")

	require.NoError(t, b.ApplyWebhookEvent(context.Background(), nil, ""))

	stored, _ := store.GetByUsername(context.Background(), "a@x.com")
	require.False(t, stored.IsSubscribed)
	require.Empty(t, pub.events)
}

func TestApplyWebhook_DuplicateSameStatusPublishesOnce(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{webhookEvent: payment.WebhookEvent{
		ID: "evt_1", Kind: "customer.subscription.updated",
		CustomerRef: "cus_1", Status: "active",
	}}
	b, store, pub := newReconciler(provider)
	seedUser(t, store, "a@x.com", "cus_1")

	require.NoError(t, b.ApplyWebhookEvent(context.Background(), nil, ""))
	require.NoError(t, b.ApplyWebhookEvent(context.Background(), nil, ""))

	stored, _ := store.GetByUsername(context.Background(), "a@x.com")
	require.True(t, stored.IsSubscribed)
	require.Len(t, pub.events, 1)
}

func TestOpenBillingPortal(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{portalURL: "https://portal.example/p_1"}
	b, store, _ := newReconciler(provider)
	seedUser(t, store, "a@x.com", "")
	seedUser(t, store, "b@x.com", "cus_2")

	noRef, err := store.GetByUsername(context.Background(), "a@x.com")
	require.NoError(t, err)
	_, err = b.OpenBillingPortal(context.Background(), noRef)
	require.ErrorIs(t, err, ErrNoCustomer)

	withRef, err := store.GetByUsername(context.Background(), "b@x.com")
	require.NoError(t, err)
	url, err := b.OpenBillingPortal(context.Background(), withRef)
	require.NoError(t, err)
	require.Equal(t, "https://portal.example/p_1", url)
}
