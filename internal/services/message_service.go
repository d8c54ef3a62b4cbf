package services

import (
	"context"
	"strings"
	"time"

	"emi-service/internal/access"
	"emi-service/internal/apperr"
	"emi-service/internal/models"
	"emi-service/internal/observability"
	"emi-service/internal/repositories"
)

const (
	DefaultMessagePage  = 1
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

// MessageService appends and pages chat messages.
type MessageService struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	now      func() time.Time
}

func NewMessageService(chats repositories.ChatRepository, messages repositories.MessageRepository) *MessageService {
	return &MessageService{chats: chats, messages: messages, now: utcNow}
}

// Send stores a message from senderID. Messages in secret chats get an
// expiry: the explicit ExpiresIn when positive, else the chat's timer.
func (s *MessageService) Send(ctx context.Context, chatID, senderID int64, in models.MessageInput) (msg models.Message, err error) {
	ctx, span := tracer.Start(ctx, "MessageService.Send")
	defer func() { finish(span, err) }()

	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if err := validateMessage(in); err != nil {
		return models.Message{}, err
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Message{}, storeErr("load chat", err)
	}
	if !access.CanWriteMessage(chat, senderID) {
		if chat.IsChannel() && chat.HasParticipant(senderID) {
			return models.Message{}, apperr.Forbidden("only channel admins can write here")
		}
		return models.Message{}, apperr.Forbidden("not a chat participant")
	}

	now := s.now()
	msg = models.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     in.Content,
		Type:        in.Type,
		StickerURL:  in.StickerURL,
		FileURL:     in.FileURL,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		IsEncrypted: chat.IsSecret,
		CreatedAt:   now,
	}
	if ttl, ok := messageTTL(chat, in); ok {
		expires := now.Add(ttl)
		msg.ExpiresAt = &expires
	}

	stored, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, storeErr("store message", err)
	}
	observability.IncMessageSent(string(chat.Type))
	return stored, nil
}

func validateMessage(in models.MessageInput) error {
	if !in.Type.Valid() {
		return apperr.InvalidInput("unknown message type")
	}
	switch in.Type {
	case models.MessageTypeText:
		if strings.TrimSpace(in.Content) == "" {
			return apperr.InvalidInput("message content required")
		}
	case models.MessageTypeSticker:
		if in.StickerURL == nil || *in.StickerURL == "" {
			return apperr.InvalidInput("sticker_url required")
		}
	default:
		if in.FileURL == nil || *in.FileURL == "" {
			return apperr.InvalidInput("file_url required")
		}
	}
	if in.FileSize != nil && *in.FileSize < 0 {
		return apperr.InvalidInput("file_size cannot be negative")
	}
	return nil
}

// messageTTL resolves how long a message lives. Only secret chats expire
// messages.
func messageTTL(chat models.Chat, in models.MessageInput) (time.Duration, bool) {
	if !chat.IsSecret {
		return 0, false
	}
	if in.ExpiresIn != nil && *in.ExpiresIn > 0 {
		return time.Duration(*in.ExpiresIn) * time.Second, true
	}
	if chat.SecretTimer != nil && *chat.SecretTimer > 0 {
		return time.Duration(*chat.SecretTimer) * time.Second, true
	}
	return 0, false
}

// List returns page of the chat history, newest page first, each page in
// chronological order. Expired messages are never returned.
func (s *MessageService) List(ctx context.Context, chatID, userID int64, page, limit int) ([]models.Message, error) {
	if page < 1 {
		return nil, apperr.InvalidInput("page must be at least 1")
	}
	if limit < 1 || limit > MaxMessageLimit {
		return nil, apperr.InvalidInput("limit must be between 1 and 100")
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, storeErr("load chat", err)
	}
	if !access.CanRead(chat, userID) {
		return nil, apperr.Forbidden("not a chat participant")
	}

	msgs, err := s.messages.ListMessages(ctx, chatID, (page-1)*limit, limit, s.now())
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	return msgs, nil
}
