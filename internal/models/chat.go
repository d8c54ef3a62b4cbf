package models

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"emi-service/internal/apperr"
)

// ChatType tags the chat variant. All variants share message delivery and
// differ only in membership and authorization rules.
type ChatType string

const (
	ChatTypePersonal ChatType = "personal"
	ChatTypeGroup    ChatType = "group"
	ChatTypeSecret   ChatType = "secret"
	ChatTypeChannel  ChatType = "channel"
)

// Valid reports whether t is a known chat variant.
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypePersonal, ChatTypeGroup, ChatTypeSecret, ChatTypeChannel:
		return true
	}
	return false
}

const DefaultBackgroundStyle = "default"

var channelUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// Chat is a personal, group, secret chat or a channel.
type Chat struct {
	ID               int64      `json:"id"`
	Type             ChatType   `json:"chat_type"`
	Name             string     `json:"name,omitempty"`
	Description      string     `json:"description,omitempty"`
	Avatar           string     `json:"avatar,omitempty"`
	Participants     []int64    `json:"participants"`
	Admins           []int64    `json:"admins"`
	IsSecret         bool       `json:"is_secret"`
	SecretTimer      *int       `json:"secret_timer,omitempty"`
	IsPublic         bool       `json:"is_public"`
	ChannelUsername  *string    `json:"channel_username,omitempty"`
	SubscriberCount  int        `json:"subscriber_count"`
	OwnerID          *int64     `json:"owner_id,omitempty"`
	AllowAllMessages bool       `json:"allow_all_messages"`
	BackgroundStyle  string     `json:"background_style,omitempty"`
	IsPinned         bool       `json:"is_pinned"`
	LastMessageID    *int64     `json:"last_message_id,omitempty"`
	LastMessageTime  *time.Time `json:"last_message_time,omitempty"`
	CreatedBy        int64      `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsChannel reports whether the chat is a broadcast channel.
func (c Chat) IsChannel() bool { return c.Type == ChatTypeChannel }

// HasParticipant reports whether userID is in the participant set.
func (c Chat) HasParticipant(userID int64) bool { return containsID(c.Participants, userID) }

// HasAdmin reports whether userID is in the admin set.
func (c Chat) HasAdmin(userID int64) bool { return containsID(c.Admins, userID) }

// IsOwner reports whether userID owns the channel.
func (c Chat) IsOwner(userID int64) bool { return c.OwnerID != nil && *c.OwnerID == userID }

// ChatSpec is the caller-controlled part of a new chat. Fields that only
// make sense for one variant are rejected on the others by Validate.
type ChatSpec struct {
	Type            ChatType
	CreatorID       int64
	Name            string
	Description     string
	ParticipantID   int64
	Participants    []int64
	IsSecret        bool
	SecretTimer     *int
	IsPublic        bool
	ChannelUsername string
}

// Validate rejects malformed or cross-variant combinations.
func (s ChatSpec) Validate() error {
	if !s.Type.Valid() {
		return apperr.InvalidInput("unknown chat type")
	}
	if s.CreatorID == 0 {
		return apperr.InvalidInput("creator required")
	}
	if s.Type != ChatTypeChannel && (s.IsPublic || s.ChannelUsername != "") {
		return apperr.InvalidInput("is_public and channel_username are only valid for channels")
	}
	if s.SecretTimer != nil {
		if *s.SecretTimer <= 0 {
			return apperr.InvalidInput("secret_timer must be positive")
		}
		if !s.Secret() {
			return apperr.InvalidInput("secret_timer requires a secret chat")
		}
	}

	switch s.Type {
	case ChatTypePersonal:
		if s.ParticipantID == 0 {
			return apperr.InvalidInput("participant_id required for personal chat")
		}
		if s.ParticipantID == s.CreatorID {
			return apperr.InvalidInput("cannot chat with yourself")
		}
		if len(s.Participants) > 0 {
			return apperr.InvalidInput("personal chat takes exactly one participant_id")
		}
	case ChatTypeGroup, ChatTypeSecret:
		if strings.TrimSpace(s.Name) == "" {
			return apperr.InvalidInput("name required")
		}
		if s.ParticipantID != 0 {
			return apperr.InvalidInput("participant_id is only valid for personal chats")
		}
	case ChatTypeChannel:
		if strings.TrimSpace(s.Name) == "" {
			return apperr.InvalidInput("name required")
		}
		if s.IsSecret {
			return apperr.InvalidInput("channels cannot be secret")
		}
		if s.ParticipantID != 0 || len(s.Participants) > 0 {
			return apperr.InvalidInput("channels are created with the owner as the only participant")
		}
		if s.ChannelUsername != "" && !channelUsernamePattern.MatchString(s.ChannelUsername) {
			return apperr.InvalidInput("channel_username must be 3-32 letters, digits or underscores")
		}
	}
	return nil
}

// Secret reports whether messages in the resulting chat are ephemeral.
func (s ChatSpec) Secret() bool {
	return s.IsSecret || s.Type == ChatTypeSecret
}

// PublicUsername returns the username that must be unique, or "" when the
// chat does not claim one.
func (s ChatSpec) PublicUsername() string {
	if s.Type == ChatTypeChannel && s.IsPublic {
		return s.ChannelUsername
	}
	return ""
}

// Build turns a validated spec into the chat record to persist. Role and
// counter fields are derived here and never taken from the caller.
func (s ChatSpec) Build(now time.Time) Chat {
	chat := Chat{
		Type:        s.Type,
		Name:        strings.TrimSpace(s.Name),
		Description: s.Description,
		IsSecret:    s.Secret(),
		CreatedBy:   s.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if chat.IsSecret {
		chat.SecretTimer = s.SecretTimer
	}

	switch s.Type {
	case ChatTypePersonal:
		chat.Participants = []int64{s.CreatorID, s.ParticipantID}
		chat.Admins = []int64{}
	case ChatTypeGroup, ChatTypeSecret:
		chat.Participants = uniqueIDs(append([]int64{s.CreatorID}, s.Participants...))
		chat.Admins = []int64{s.CreatorID}
	case ChatTypeChannel:
		owner := s.CreatorID
		chat.Participants = []int64{s.CreatorID}
		chat.Admins = []int64{s.CreatorID}
		chat.OwnerID = &owner
		chat.AllowAllMessages = false
		chat.IsPublic = s.IsPublic
		chat.BackgroundStyle = DefaultBackgroundStyle
		if s.ChannelUsername != "" {
			username := s.ChannelUsername
			chat.ChannelUsername = &username
		}
	}
	chat.SubscriberCount = len(chat.Participants)
	return chat
}

// PersonalPair returns the unordered pair key of a personal chat.
func PersonalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// ChatSettingsUpdate lists every field that may change after creation.
// Nil fields are left untouched.
type ChatSettingsUpdate struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	Avatar           *string `json:"avatar"`
	AllowAllMessages *bool   `json:"allow_all_messages"`
	BackgroundStyle  *string `json:"background_style"`
}

// Empty reports whether the update changes nothing.
func (u ChatSettingsUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Avatar == nil &&
		u.AllowAllMessages == nil && u.BackgroundStyle == nil
}

// Validate checks the update against the target chat variant.
func (u ChatSettingsUpdate) Validate(t ChatType) error {
	if u.Empty() {
		return apperr.InvalidInput("no valid fields to update")
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return apperr.InvalidInput("name cannot be empty")
	}
	if t != ChatTypeChannel && (u.AllowAllMessages != nil || u.BackgroundStyle != nil) {
		return apperr.InvalidInput("allow_all_messages and background_style are only valid for channels")
	}
	if u.BackgroundStyle != nil && strings.TrimSpace(*u.BackgroundStyle) == "" {
		return apperr.InvalidInput("background_style cannot be empty")
	}
	return nil
}

// ChatFilter narrows chat search.
type ChatFilter struct {
	UserID int64
	Query  string
	Type   ChatType
	Limit  int
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > 1 {
		rest := out[1:]
		sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	}
	return out
}
