package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-auth/internal/middleware"
	"github.com/iliyamo/chat-auth/internal/model"
	"github.com/iliyamo/chat-auth/internal/service"
)

// Authenticator is the slice of service.AuthService the HTTP layer needs.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, email, password string) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (service.IssuedToken, error)
	Me(ctx context.Context, userID string) (model.PublicUser, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     Authenticator
	validate *validator.Validate
}

func NewAuthHandler(a Authenticator) *AuthHandler {
	return &AuthHandler{Auth: a, validate: validator.New()}
}

// ----- DTOs -----

// Length limits follow the users table columns.
type registerReq struct {
	Email       string `json:"email" validate:"required,max=320"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName" validate:"required,max=255"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type authResp struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         model.PublicUser `json:"user"`
	Message      string           `json:"message,omitempty"`
}

// validationError picks the service error for a failed registerReq.  A
// missing field wins over an over-long one.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return service.ErrMissingFields
	}
	for _, fe := range ve {
		if fe.Tag() == "required" {
			return service.ErrMissingFields
		}
	}
	return service.ErrFieldTooLong
}

// requestCtx carries the caller address into the service for audit events.
func requestCtx(c echo.Context) context.Context {
	return service.ContextWithRemoteIP(c.Request().Context(), c.RealIP())
}

// Register: create the user and return a token pair.  Clients are told to
// log in next; the pair is there for consumers that want to skip that step.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, validationError(err), "")
	}

	res, err := h.Auth.Register(requestCtx(c), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return fail(c, err, "Registration failed")
	}
	return c.JSON(http.StatusCreated, authResp{
		AccessToken:  res.Tokens.Access.Token,
		RefreshToken: res.Tokens.Refresh.Token,
		User:         res.User,
		Message:      "Registration successful. Please login.",
	})
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	res, err := h.Auth.Login(requestCtx(c), req.Email, req.Password)
	if err != nil {
		return fail(c, err, "Login failed")
	}
	return c.JSON(http.StatusOK, authResp{
		AccessToken:  res.Tokens.Access.Token,
		RefreshToken: res.Tokens.Refresh.Token,
		User:         res.User,
	})
}

// Refresh: exchange a refresh token for an access token.  The refresh token
// itself is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	// an unreadable body is treated like a missing token
	_ = c.Bind(&req)

	tok, err := h.Auth.Refresh(requestCtx(c), req.RefreshToken)
	if err != nil {
		return fail(c, err, "Refresh failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"accessToken": tok.Token})
}

// Protected is the sample bearer-guarded endpoint.
func (h *AuthHandler) Protected(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Protected data",
		"userId":  middleware.UserID(c),
	})
}

// Me returns the authenticated user's public profile.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.Auth.Me(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return fail(c, err, "Lookup failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
