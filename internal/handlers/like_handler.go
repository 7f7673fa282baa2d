package handlers

import (
	"net/http"

	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	postService *services.PostService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(postService *services.PostService) *LikeHandler {
	return &LikeHandler{postService: postService}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(protected *echo.Group) {
	protected.POST("/posts/:id/like", h.ToggleLike)
}

// ToggleLike likes the post, or unlikes it if the caller already did
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	liked, err := h.postService.ToggleLike(c.Request().Context(), c.Param("id"), id.UID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": liked})
}
