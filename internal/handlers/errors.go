package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/middleware"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/internal/views"
	"github.com/anonto42/devforum/backend/validators"
	"github.com/labstack/echo/v4"
)

var (
	errInvalidPayload = echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	errNotAuthorized  = echo.NewHTTPError(http.StatusUnauthorized, "User is not authorized")
)

// httpError translates service errors into HTTP errors. Unexpected errors are
// logged by the request logger and reported without detail.
func httpError(err error) error {
	var ve *validators.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"message": "Validation failed", "fields": ve.Fields})
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found").SetInternal(err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, auth.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, "Email already in use")
	case errors.Is(err, views.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
}

// identity returns the caller or errNotAuthorized.
func identity(c echo.Context) (*auth.Identity, error) {
	id := middleware.Identity(c)
	if id == nil {
		return nil, errNotAuthorized
	}
	return id, nil
}
