package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"emi-service/internal/models"
	"emi-service/internal/reactions"
	"emi-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chat models.Chat) (models.Chat, error) {
	args := m.Called(ctx, chat)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) CreatePersonal(ctx context.Context, chat models.Chat) (models.Chat, error) {
	args := m.Called(ctx, chat)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) FindPersonalChatBetween(ctx context.Context, a, b int64) (models.Chat, error) {
	args := m.Called(ctx, a, b)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) ChannelUsernameTaken(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int64, chatType models.ChatType) ([]models.Chat, error) {
	args := m.Called(ctx, userID, chatType)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateSettings(ctx context.Context, chatID int64, update models.ChatSettingsUpdate) (models.Chat, error) {
	args := m.Called(ctx, chatID, update)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) AddParticipant(ctx context.Context, chatID int64, userID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID, userID)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) TogglePin(ctx context.Context, chatID int64) (bool, error) {
	args := m.Called(ctx, chatID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) SearchChats(ctx context.Context, filter models.ChatFilter) ([]models.Chat, error) {
	args := m.Called(ctx, filter)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if fn, ok := args.Get(0).(func(context.Context, models.Message) models.Message); ok {
		out = fn(ctx, msg)
	} else if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int64, offset, limit int, now time.Time) ([]models.Message, error) {
	args := m.Called(ctx, chatID, offset, limit, now)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type PostRepositoryMock struct {
	mock.Mock
}

func (m *PostRepositoryMock) CreatePost(ctx context.Context, post models.Post) (models.Post, error) {
	args := m.Called(ctx, post)
	var out models.Post
	if fn, ok := args.Get(0).(func(context.Context, models.Post) models.Post); ok {
		out = fn(ctx, post)
	} else if val := args.Get(0); val != nil {
		out = val.(models.Post)
	}
	return out, args.Error(1)
}

func (m *PostRepositoryMock) ListPosts(ctx context.Context, channelID int64, limit int, beforeSequence *int64) ([]models.Post, error) {
	args := m.Called(ctx, channelID, limit, beforeSequence)
	var posts []models.Post
	if val := args.Get(0); val != nil {
		posts = val.([]models.Post)
	}
	return posts, args.Error(1)
}

func (m *PostRepositoryMock) GetPost(ctx context.Context, postID int64) (models.Post, error) {
	args := m.Called(ctx, postID)
	var out models.Post
	if val := args.Get(0); val != nil {
		out = val.(models.Post)
	}
	return out, args.Error(1)
}

func (m *PostRepositoryMock) DeletePost(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *PostRepositoryMock) ToggleReaction(ctx context.Context, postID, userID int64, reactionType string) (models.Reactions, reactions.Action, error) {
	args := m.Called(ctx, postID, userID, reactionType)
	var out models.Reactions
	if val := args.Get(0); val != nil {
		out = val.(models.Reactions)
	}
	return out, args.Get(1).(reactions.Action), args.Error(2)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) UpsertWalletUser(ctx context.Context, user models.User) (models.User, bool, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) SetOffline(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	args := m.Called(ctx, userID, update)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, excludeID, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.PostRepository = (*PostRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
