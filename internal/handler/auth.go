package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/middleware"
	"github.com/iliyamo/patient-records/internal/service"
)

// AuthHandler serves login, refresh, logout, registration and the
// caller's own account.
type AuthHandler struct {
	creds *service.CredentialService
	users *service.UserService
}

func NewAuthHandler(creds *service.CredentialService, users *service.UserService) *AuthHandler {
	if creds == nil || users == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{creds: creds, users: users}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type registerResp struct {
	User   userResp  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login: verify credentials and return a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.creds.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Refresh: trade the (possibly expired) access token and the refresh token
// for a new pair. The access token comes from the Authorization header or
// the body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	access := middleware.BearerTokenOptional(c)
	if access == "" {
		access = strings.TrimSpace(req.AccessToken)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sess, err := h.creds.Refresh(ctx, access, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResp(sess))
}

// Logout drops the caller's refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.creds.Logout(ctx, middleware.Token(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Register creates an account of the role in the path.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	access, u, err := h.creds.Register(ctx, middleware.Token(c), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, c.Param("role"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, registerResp{
		User:   toUserResp(u),
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.Me(ctx, middleware.Token(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.creds.ChangePassword(ctx, middleware.Token(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
