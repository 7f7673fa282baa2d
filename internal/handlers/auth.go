package handlers

import (
	"net/http"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(public, protected *echo.Group) {
	public.POST("/auth/signup", h.Signup)
	public.POST("/auth/signin", h.SignIn)
	protected.POST("/auth/signout", h.SignOut)
}

// Signup creates an account and its profile
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload
	}

	res, err := h.authService.SignUp(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"token": res.Identity.Token, "user": res.User})
}

// SignIn handles user authentication with email and password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload
	}

	res, err := h.authService.SignIn(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": res.Identity.Token, "user": res.User})
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	if err := h.authService.LogOut(c.Request().Context(), id.UID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
