package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postService *services.PostService
	userService *services.UserService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postService *services.PostService, userService *services.UserService) *PostHandler {
	return &PostHandler{postService: postService, userService: userService}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(public, protected *echo.Group) {
	public.GET("/posts", h.GetPosts)
	public.GET("/posts/:id", h.GetPost)
	protected.POST("/posts", h.CreatePost)
}

// CreatePost creates a new post signed by the caller's current profile
func (h *PostHandler) CreatePost(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload
	}

	author, err := authorOf(c, h.userService, id)
	if err != nil {
		return httpError(err)
	}
	post, err := h.postService.CreatePost(c.Request().Context(), services.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Author:  author,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID and counts the view
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postService.GetPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// GetPosts lists the newest posts, optionally by tag or author
func (h *PostHandler) GetPosts(c echo.Context) error {
	var filter services.FeedFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be int")
	}

	posts, err := h.postService.ListPosts(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	sort := models.ParseSortMode(c.QueryParam("sort"))
	return c.JSON(http.StatusOK, models.SortPosts(posts, sort))
}

// authorOf builds the author snapshot from the caller's profile, falling back to
// what the token says when there is no profile document.
func authorOf(c echo.Context, users *services.UserService, id *auth.Identity) (models.Author, error) {
	user, err := users.GetUserProfile(c.Request().Context(), id.UID)
	if err == nil {
		return user.Author(), nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Author{ID: id.UID, Name: id.DisplayName, PhotoURL: id.PhotoURL}, nil
	}
	return models.Author{}, err
}
