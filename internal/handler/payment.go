package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/auth"
	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/payment"
	"github.com/iliyamo/account-service/internal/service"
)

// providerTimeout bounds outbound payment provider calls. More generous
// than the DB timeout because checkout/portal creation crosses the public
// internet.
const providerTimeout = 15 * time.Second

// PaymentHandler bundles dependencies for the billing endpoints.
type PaymentHandler struct {
	Sessions *service.SessionManager
	Billing  *service.BillingReconciler
}

func NewPaymentHandler(sessions *service.SessionManager, billing *service.BillingReconciler) *PaymentHandler {
	return &PaymentHandler{Sessions: sessions, Billing: billing}
}

// CreateCheckout: start a subscription purchase for the authenticated
// user and return the provider's checkout URL.
func (h *PaymentHandler) CreateCheckout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), providerTimeout)
	defer cancel()

	u, err := h.Sessions.Profile(ctx, middleware.Username(c))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Logger().Errorf("load user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	checkoutURL, err := h.Billing.StartCheckout(ctx, u)
	if err != nil {
		// Provider detail is logged, never echoed to the client.
		c.Logger().Errorf("create checkout failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment provider error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"checkout_url": checkoutURL})
}

// Success: redirect target after a completed checkout. The provider
// substitutes the session ID into the URL; we fetch the session back and
// flip the subscription flag. Safe to hit more than once.
func (h *PaymentHandler) Success(c echo.Context) error {
	username := c.QueryParam("username")
	sessionID := c.QueryParam("session_id")
	if username == "" || sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and session_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), providerTimeout)
	defer cancel()

	if err := h.Billing.ConfirmCheckout(ctx, username, sessionID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		c.Logger().Errorf("confirm checkout failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment provider error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Subscription successful!"})
}

// Cancel: redirect target when the user abandons checkout. Nothing to do.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Payment cancelled."})
}

// BillingPortal: return a provider-hosted billing management URL for the
// authenticated user.
func (h *PaymentHandler) BillingPortal(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), providerTimeout)
	defer cancel()

	u, err := h.Sessions.Profile(ctx, middleware.Username(c))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Logger().Errorf("load user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	portalURL, err := h.Billing.OpenBillingPortal(ctx, u)
	if err != nil {
		if errors.Is(err, service.ErrNoCustomer) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "user has no billing customer"})
		}
		c.Logger().Errorf("billing portal failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment provider error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"portal_url": portalURL})
}

// Webhook: provider event ingestion. The raw body is read before any
// parsing because the signature covers the exact bytes on the wire.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Billing.ApplyWebhookEvent(ctx, payload, sig); err != nil {
		if errors.Is(err, payment.ErrInvalidWebhook) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload or signature"})
		}
		c.Logger().Errorf("webhook apply failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}
