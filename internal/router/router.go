package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // the Echo web framework handles routing

	"github.com/iliyamo/account-service/internal/auth"       // token issuer for the JWT middleware
	"github.com/iliyamo/account-service/internal/handler"    // handlers implementing the endpoints
	"github.com/iliyamo/account-service/internal/middleware" // JWT authentication and rate limiting
)

// RegisterRoutes wires every endpoint onto the provided Echo instance.
// The authentication group carries the rate limiter (pass nil to skip,
// e.g. when Redis is unavailable); protected routes additionally run the
// JWT middleware per route.
func RegisterRoutes(e *echo.Echo, a *handler.AuthHandler, p *handler.PaymentHandler, issuer *auth.Issuer, ratelimit echo.MiddlewareFunc) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	jwtAuth := middleware.JWTAuth(issuer)

	// Authentication endpoints. Signup, login and refresh are open;
	// logout and profile require a valid bearer token.
	ag := e.Group("/api/authentication")
	if ratelimit != nil {
		ag.Use(ratelimit)
	}
	ag.POST("/signup/", a.Signup)
	ag.POST("/login/", a.Login)
	ag.POST("/token/refresh/", a.Refresh)
	ag.POST("/logout/", a.Logout, jwtAuth)
	ag.GET("/get_user_profile/", a.Profile, jwtAuth)

	// Payment endpoints. Checkout and portal act on the authenticated
	// user; success/cancel are provider redirect targets and the webhook
	// authenticates itself through its signature.
	pg := e.Group("/api/payment")
	pg.GET("/create_checkout/", p.CreateCheckout, jwtAuth)
	pg.GET("/success/", p.Success)
	pg.GET("/cancel/", p.Cancel)
	pg.GET("/billing-portal/", p.BillingPortal, jwtAuth)
	pg.POST("/webhook/", p.Webhook)
}
