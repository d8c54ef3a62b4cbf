package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emi-service/internal/models"
	"emi-service/internal/services"
)

// ChatHandler manages chat, channel and message endpoints.
type ChatHandler struct {
	chats    *services.ChatService
	messages *services.MessageService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *services.ChatService, messages *services.MessageService) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages}
}

// ListChats returns the chats the authenticated user takes part in.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), currentUserID(c), models.ChatType(c.Query("chat_type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

type createChatRequest struct {
	ChatType        models.ChatType `json:"chat_type" binding:"required"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ParticipantID   int64           `json:"participant_id"`
	Participants    []int64         `json:"participants"`
	IsSecret        bool            `json:"is_secret"`
	SecretTimer     *int            `json:"secret_timer"`
	IsPublic        bool            `json:"is_public"`
	ChannelUsername string          `json:"channel_username"`
}

// CreateChat creates a chat or channel. Personal chats are returned as is
// when the pair already talks.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.Create(c.Request.Context(), models.ChatSpec{
		Type:            req.ChatType,
		CreatorID:       currentUserID(c),
		Name:            req.Name,
		Description:     req.Description,
		ParticipantID:   req.ParticipantID,
		Participants:    req.Participants,
		IsSecret:        req.IsSecret,
		SecretTimer:     req.SecretTimer,
		IsPublic:        req.IsPublic,
		ChannelUsername: req.ChannelUsername,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) SearchChats(c *gin.Context) {
	chats, err := h.chats.Search(c.Request.Context(), currentUserID(c), c.Query("query"), models.ChatType(c.Query("chat_type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	chat, err := h.chats.Get(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// GetChatMessages returns one page of history in chronological order.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page", services.DefaultMessagePage)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", services.DefaultMessageLimit)
	if !ok {
		return
	}

	msgs, err := h.messages.List(c.Request.Context(), chatID, currentUserID(c), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a chat message.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	var in models.MessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), chatID, currentUserID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) Subscribe(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	chat, err := h.chats.Subscribe(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": true, "subscriber_count": chat.SubscriberCount})
}

// UpdateSettings applies a partial settings update. Unknown fields are
// rejected.
func (h *ChatHandler) UpdateSettings(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	var update models.ChatSettingsUpdate
	if !bindStrict(c, &update) {
		return
	}

	chat, err := h.chats.UpdateSettings(c.Request.Context(), chatID, currentUserID(c), update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) TogglePin(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	pinned, err := h.chats.TogglePin(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_pinned": pinned})
}
