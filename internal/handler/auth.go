package handler

import (
	"context"   // provides context with cancellation for DB calls
	"errors"    // sentinel error matching
	"net/http"  // HTTP status codes and primitives
	"strings"   // string manipulation utilities
	"time"      // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/account-service/internal/auth"       // token verification errors
	"github.com/iliyamo/account-service/internal/middleware" // authenticated subject extraction
	"github.com/iliyamo/account-service/internal/repository" // DB sentinel errors
	"github.com/iliyamo/account-service/internal/service"    // session orchestration
)

const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the authentication endpoints.
type AuthHandler struct {
	Sessions *service.SessionManager
}

func NewAuthHandler(sessions *service.SessionManager) *AuthHandler {
	return &AuthHandler{Sessions: sessions}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type profileResp struct {
	Username     string `json:"username"`
	IsSubscribed bool   `json:"is_subscribed"`
}

type tokenPairResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type accessTokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Signup: create an account. The new user receives no tokens; it must log
// in like everyone else.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Sessions.Signup(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already registered"})
		}
		c.Logger().Errorf("signup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	return c.JSON(http.StatusCreated, profileResp{Username: u.Username, IsSubscribed: u.IsSubscribed})
}

// Login: verify credentials and return a fresh token pair. The error body
// is identical for unknown usernames and wrong passwords.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	pair, err := h.Sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "incorrect username or password"})
		}
		c.Logger().Errorf("login failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, tokenPairResp{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		TokenType:    "bearer",
	})
}

// Refresh: exchange a refresh token (form field) for a new access token.
// The refresh token is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	presented := strings.TrimSpace(c.FormValue("refresh_token"))
	if presented == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	access, _, err := h.Sessions.Refresh(ctx, presented)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		c.Logger().Errorf("refresh failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	return c.JSON(http.StatusOK, accessTokenResp{AccessToken: access, TokenType: "bearer"})
}

// Logout: revoke the current refresh token (protected). Calling it twice
// is fine; clearing an already-cleared token is not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	username := middleware.Username(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Sessions.Logout(ctx, username); err != nil {
		c.Logger().Errorf("logout failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Profile: return the authenticated user's own profile.
func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Sessions.Profile(ctx, middleware.Username(c))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Logger().Errorf("load profile failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load profile failed"})
	}
	return c.JSON(http.StatusOK, profileResp{Username: u.Username, IsSubscribed: u.IsSubscribed})
}
