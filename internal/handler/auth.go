package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shuttletrack/api/internal/model"
	"github.com/shuttletrack/api/internal/repository"
	"github.com/shuttletrack/api/internal/service"
)

// AuthService is the slice of the identity service the handlers need.
// Satisfied by *service.AuthService; tests substitute a fake.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	AuthenticatePassword(ctx context.Context, email, password string) (service.AuthResult, error)
	AuthenticateGoogle(ctx context.Context, a service.GoogleAssertion) (service.AuthResult, error)
	SafeProfile(ctx context.Context, id uint64) (model.SafeUser, error)
	UpdateProfile(ctx context.Context, id uint64, upd repository.ProfileUpdate) (model.SafeUser, error)
	SetUserActive(ctx context.Context, id uint64, active bool) (model.SafeUser, error)
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler { return &AuthHandler{Svc: svc} }

// ----- DTOs -----

type registerReq struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	BusNumber       string `json:"busNumber"`
	MobileNumber    string `json:"mobileNumber"`
	CurrentLocation string `json:"currentLocation"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// googleReq mirrors the fields the web client lifts out of the provider
// assertion. Field names follow Google's ID token claims.
type googleReq struct {
	GoogleID      string `json:"googleId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Picture       string `json:"picture"`
	EmailVerified bool   `json:"email_verified"`
}

type profileReq struct {
	Name            *string `json:"name,omitempty"`
	BusNumber       *string `json:"busNumber,omitempty"`
	MobileNumber    *string `json:"mobileNumber,omitempty"`
	CurrentLocation *string `json:"currentLocation,omitempty"`
	ProfilePicture  *string `json:"profilePicture,omitempty"`
}

type setActiveReq struct {
	IsActive *bool `json:"isActive"`
}

// Every response uses the same envelope: {success, data} on the happy path,
// {success:false, message} otherwise.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type authData struct {
	Token string         `json:"token"`
	User  model.SafeUser `json:"user"`
}

type userData struct {
	User model.SafeUser `json:"user"`
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, response{Success: true, Data: data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, response{Success: false, Message: msg})
}

// Register creates an identity and returns a token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.Register(ctx, service.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		Role:            req.Role,
		BusNumber:       req.BusNumber,
		MobileNumber:    req.MobileNumber,
		CurrentLocation: req.CurrentLocation,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, http.StatusCreated, authData{Token: res.Token.Token, User: res.User})
}

// Login verifies an email/password pair and returns a fresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.AuthenticatePassword(ctx, req.Email, req.Password)
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, http.StatusOK, authData{Token: res.Token.Token, User: res.User})
}

// GoogleLogin resolves a federated assertion to an existing identity. A 404
// tells the client the account must be registered first.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	var req googleReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.AuthenticateGoogle(ctx, service.GoogleAssertion{
		GoogleID:      req.GoogleID,
		Name:          req.Name,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		Picture:       req.Picture,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, http.StatusOK, authData{Token: res.Token.Token, User: res.User})
}

// Me returns the authenticated user's safe profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := currentUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.SafeProfile(ctx, id)
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, http.StatusOK, userData{User: user})
}

// UpdateProfile applies a partial profile update for the authenticated user.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	id, err := currentUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req profileReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.UpdateProfile(ctx, id, repository.ProfileUpdate{
		Name:            req.Name,
		BusNumber:       req.BusNumber,
		MobileNumber:    req.MobileNumber,
		CurrentLocation: req.CurrentLocation,
		ProfilePicture:  req.ProfilePicture,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, http.StatusOK, userData{User: user})
}

// SetUserActive is the admin-only deactivation switch.
func (h *AuthHandler) SetUserActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}

	var req setActiveReq
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return fail(c, http.StatusBadRequest, "isActive is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	user, err := h.Svc.SetUserActive(ctx, id, *req.IsActive)
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, http.StatusOK, userData{User: user})
}

// serviceError maps service failures onto the response envelope. Validation
// and credential problems are client errors; deactivation gets its own
// status so the client can show an actionable message.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, "email already registered")
	case errors.Is(err, repository.ErrGoogleIDExists):
		return fail(c, http.StatusConflict, "google account already linked")
	case errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrAccountDeactivated):
		return fail(c, http.StatusForbidden, service.ErrAccountDeactivated.Error())
	case errors.Is(err, service.ErrRegistrationRequired):
		return fail(c, http.StatusNotFound, service.ErrRegistrationRequired.Error())
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, "user not found")
	default:
		return fail(c, http.StatusInternalServerError, "server error")
	}
}

// currentUserID reads the identity placed in the context by the JWT
// middleware.
func currentUserID(c echo.Context) (uint64, error) {
	id, ok := c.Get("user_id").(uint64)
	if !ok || id == 0 {
		return 0, errors.New("no authenticated user in context")
	}
	return id, nil
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
