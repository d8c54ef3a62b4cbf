package services

import (
	"context"
	"strings"
	"time"

	"emi-service/internal/access"
	"emi-service/internal/apperr"
	"emi-service/internal/models"
	"emi-service/internal/repositories"
	"emi-service/internal/telemetry"
)

const chatEvents = "domain_events.chats"

// ChatService creates chats and channels and manages membership and settings.
type ChatService struct {
	chats  repositories.ChatRepository
	users  repositories.UserRepository
	notify notifier
	now    func() time.Time
}

func NewChatService(chats repositories.ChatRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *ChatService {
	return &ChatService{chats: chats, users: users, notify: notifier{audit: audit}, now: utcNow}
}

// Create validates spec and stores the chat. Personal chats are idempotent
// over the unordered pair and return the existing chat when there is one.
func (s *ChatService) Create(ctx context.Context, spec models.ChatSpec) (chat models.Chat, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.Create")
	defer func() { finish(span, err) }()

	if err := spec.Validate(); err != nil {
		return models.Chat{}, err
	}
	draft := spec.Build(s.now())

	switch spec.Type {
	case models.ChatTypePersonal:
		if _, err := s.users.GetUser(ctx, spec.ParticipantID); err != nil {
			return models.Chat{}, storeErr("load participant", err)
		}
		chat, err = s.chats.CreatePersonal(ctx, draft)
	case models.ChatTypeChannel:
		if username := spec.PublicUsername(); username != "" {
			taken, err := s.chats.ChannelUsernameTaken(ctx, username)
			if err != nil {
				return models.Chat{}, storeErr("check channel username", err)
			}
			if taken {
				return models.Chat{}, repositories.ErrUsernameTaken
			}
		}
		chat, err = s.chats.CreateChat(ctx, draft)
	default:
		chat, err = s.chats.CreateChat(ctx, draft)
	}
	if err != nil {
		return models.Chat{}, storeErr("create chat", err)
	}

	s.notify.record(ctx, spec.CreatorID, "chat created", chatEvents, "chat_created", map[string]interface{}{
		"chat_id":   chat.ID,
		"chat_type": chat.Type,
		"user_id":   spec.CreatorID,
	})
	return chat, nil
}

// Get returns a chat visible to userID: any chat they take part in, or a
// public channel.
func (s *ChatService) Get(ctx context.Context, chatID, userID int64) (models.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, storeErr("load chat", err)
	}
	if !access.CanRead(chat, userID) && !(chat.IsChannel() && chat.IsPublic) {
		return models.Chat{}, apperr.Forbidden("not a chat participant")
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, userID int64, chatType models.ChatType) ([]models.Chat, error) {
	if chatType != "" && !chatType.Valid() {
		return nil, apperr.InvalidInput("unknown chat type")
	}
	chats, err := s.chats.ListChatsForUser(ctx, userID, chatType)
	if err != nil {
		return nil, storeErr("list chats", err)
	}
	return chats, nil
}

// Subscribe adds userID to a channel's participants.
func (s *ChatService) Subscribe(ctx context.Context, chatID, userID int64) (chat models.Chat, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.Subscribe")
	defer func() { finish(span, err) }()

	current, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, storeErr("load chat", err)
	}
	if !current.IsChannel() {
		return models.Chat{}, apperr.InvalidInput("not a channel")
	}
	if current.HasParticipant(userID) {
		return models.Chat{}, repositories.ErrAlreadyMember
	}

	chat, err = s.chats.AddParticipant(ctx, chatID, userID)
	if err != nil {
		return models.Chat{}, storeErr("subscribe", err)
	}
	s.notify.record(ctx, userID, "channel subscribed", chatEvents, "channel_subscribed", map[string]interface{}{
		"chat_id":          chat.ID,
		"user_id":          userID,
		"subscriber_count": chat.SubscriberCount,
	})
	return chat, nil
}

// UpdateSettings applies update. Channels accept changes from the owner and
// admins, group and secret chats from their admins.
func (s *ChatService) UpdateSettings(ctx context.Context, chatID, userID int64, update models.ChatSettingsUpdate) (models.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, storeErr("load chat", err)
	}
	if !canManage(chat, userID) {
		return models.Chat{}, apperr.Forbidden("only chat admins can change settings")
	}
	if err := update.Validate(chat.Type); err != nil {
		return models.Chat{}, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		update.Name = &name
	}

	updated, err := s.chats.UpdateSettings(ctx, chatID, update)
	if err != nil {
		return models.Chat{}, storeErr("update chat settings", err)
	}
	s.notify.record(ctx, userID, "chat settings updated", chatEvents, "chat_settings_updated", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	})
	return updated, nil
}

func canManage(chat models.Chat, userID int64) bool {
	if chat.IsChannel() {
		return access.CanManageChannel(chat, userID)
	}
	return chat.HasAdmin(userID)
}

// TogglePin flips the pinned flag of a chat userID takes part in.
func (s *ChatService) TogglePin(ctx context.Context, chatID, userID int64) (bool, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return false, storeErr("load chat", err)
	}
	if !access.CanRead(chat, userID) {
		return false, apperr.Forbidden("not a chat participant")
	}
	pinned, err := s.chats.TogglePin(ctx, chatID)
	if err != nil {
		return false, storeErr("toggle pin", err)
	}
	return pinned, nil
}

// Search finds public channels when chatType is channel and the caller's
// own chats otherwise.
func (s *ChatService) Search(ctx context.Context, userID int64, query string, chatType models.ChatType) ([]models.Chat, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidInput("query required")
	}
	if chatType != "" && !chatType.Valid() {
		return nil, apperr.InvalidInput("unknown chat type")
	}
	chats, err := s.chats.SearchChats(ctx, models.ChatFilter{
		UserID: userID,
		Query:  query,
		Type:   chatType,
	})
	if err != nil {
		return nil, storeErr("search chats", err)
	}
	return chats, nil
}
