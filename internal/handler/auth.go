package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/auth"
	"github.com/iliyamo/movie-reservation/internal/middleware"
	"github.com/iliyamo/movie-reservation/internal/response"
)

// AuthHandler serves /api/Auth.
type AuthHandler struct {
	Auth    *auth.Service
	Timeout time.Duration
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: svc, Timeout: timeout}
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/Auth/Register and signs the new user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var in auth.RegisterInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	sess, err := h.Auth.Register(ctx, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, "Registration successful", sess)
}

// Login handles POST /api/Auth/Login.
func (h *AuthHandler) Login(c echo.Context) error {
	var in auth.LoginInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	sess, err := h.Auth.Login(ctx, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Login successful", sess)
}

// Refresh handles POST /api/Auth/Refresh: the refresh token is rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Token refreshed", sess)
}

// RefreshAccess handles POST /api/Auth/RefreshAccess: a new access token
// without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	at, err := h.Auth.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Access token issued", echo.Map{"access": at})
}

// Logout handles POST /api/Auth/Logout.  A refresh_token in the body ends
// that session; otherwise a bearer token ends every session of its user.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	uid, _ := middleware.UserID(c)
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, uid, strings.TrimSpace(req.RefreshToken)); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Logged out successfully", nil)
}

// ChangePassword handles POST /api/Auth/ChangePassword.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	var in auth.ChangePasswordInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, uid, in); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Password changed successfully", nil)
}

// Profile handles GET /api/Auth/Profile.
func (h *AuthHandler) Profile(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Auth.Profile(ctx, uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Profile retrieved successfully", p)
}
