package handlers

import (
	"net/http"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	postService *services.PostService
	userService *services.UserService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(postService *services.PostService, userService *services.UserService) *CommentHandler {
	return &CommentHandler{postService: postService, userService: userService}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(public, protected *echo.Group) {
	public.GET("/posts/:id/comments", h.GetCommentsByPostID)
	protected.POST("/posts/:id/comments", h.CreateComment)
}

// CreateComment adds a comment to a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidPayload
	}

	author, err := authorOf(c, h.userService, id)
	if err != nil {
		return httpError(err)
	}
	comment, err := h.postService.AddComment(c.Request().Context(), c.Param("id"), services.CreateCommentInput{
		Content: req.Content,
		Author:  author,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// GetCommentsByPostID lists a post's comments oldest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	comments, err := h.postService.ListComments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, comments)
}
