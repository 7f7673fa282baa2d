package handlers

import (
	"net/http"

	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles bookmark requests
type SavedPostHandler struct {
	postService *services.PostService
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(postService *services.PostService) *SavedPostHandler {
	return &SavedPostHandler{postService: postService}
}

// RegisterSavedPostRoutes registers bookmark routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(protected *echo.Group) {
	protected.POST("/posts/:id/bookmark", h.ToggleBookmark)
	protected.GET("/bookmarks", h.GetBookmarks)
}

// ToggleBookmark saves the post, or removes it if it was saved
func (h *SavedPostHandler) ToggleBookmark(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	bookmarked, err := h.postService.ToggleBookmark(c.Request().Context(), id.UID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookmarked": bookmarked})
}

// GetBookmarks lists the caller's saved posts, newest first
func (h *SavedPostHandler) GetBookmarks(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	posts, err := h.postService.GetBookmarkedPosts(c.Request().Context(), id.UID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}
