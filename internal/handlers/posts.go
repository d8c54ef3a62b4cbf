package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"emi-service/internal/models"
	"emi-service/internal/services"
)

// PostHandler serves the channel feed. Every route keys on :id, which is
// the channel id for create/list and the post id otherwise.
type PostHandler struct {
	posts *services.PostService
}

func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in models.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), channelID, currentUserID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ListPosts pages backwards through the feed with ?before_sequence=.
func (h *PostHandler) ListPosts(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", services.DefaultPostLimit)
	if !ok {
		return
	}
	var before *int64
	if raw := c.Query("before_sequence"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_sequence"})
			return
		}
		before = &v
	}

	page, err := h.posts.List(c.Request.Context(), channelID, currentUserID(c), limit, before)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PostHandler) ToggleReaction(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ReactionType string `json:"reaction_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reactions, err := h.posts.ToggleReaction(c.Request.Context(), postID, currentUserID(c), req.ReactionType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), postID, currentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
