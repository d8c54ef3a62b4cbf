package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emi-service/internal/models"
	"emi-service/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit", services.DefaultUserSearchLimit)
	if !ok {
		return
	}
	users, err := h.users.Search(c.Request.Context(), currentUserID(c), c.Query("query"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile accepts only username and avatar.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var update models.ProfileUpdate
	if !bindStrict(c, &update) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUserID(c), update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
