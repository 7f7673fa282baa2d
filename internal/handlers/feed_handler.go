package handlers

import (
	"net/http"

	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves search and trending
type FeedHandler struct {
	postService *services.PostService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(postService *services.PostService) *FeedHandler {
	return &FeedHandler{postService: postService}
}

// RegisterFeedRoutes registers feed routes
func (h *FeedHandler) RegisterFeedRoutes(public *echo.Group) {
	public.GET("/search", h.Search)
	public.GET("/trending", h.Trending)
}

// Search matches q against titles, contents and tags
func (h *FeedHandler) Search(c echo.Context) error {
	posts, err := h.postService.SearchPosts(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}

// Trending returns the most liked posts of the week
func (h *FeedHandler) Trending(c echo.Context) error {
	posts, err := h.postService.GetTrendingPosts(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}
