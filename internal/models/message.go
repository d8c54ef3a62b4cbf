package models

import "time"

// MessageType is the payload kind of a chat message.
type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeSticker MessageType = "sticker"
	MessageTypeVoice   MessageType = "voice"
	MessageTypeImage   MessageType = "image"
	MessageTypeVideo   MessageType = "video"
	MessageTypeFile    MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeSticker, MessageTypeVoice, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

// Message represents a chat message. Messages are immutable once stored.
type Message struct {
	ID          int64       `db:"id" json:"id"`
	ChatID      int64       `db:"chat_id" json:"chat_id"`
	SenderID    int64       `db:"sender_id" json:"sender_id"`
	Content     string      `db:"content" json:"content"`
	Type        MessageType `db:"message_type" json:"message_type"`
	StickerURL  *string     `db:"sticker_url" json:"sticker_url,omitempty"`
	FileURL     *string     `db:"file_url" json:"file_url,omitempty"`
	FileName    *string     `db:"file_name" json:"file_name,omitempty"`
	FileSize    *int64      `db:"file_size" json:"file_size,omitempty"`
	IsEncrypted bool        `db:"is_encrypted" json:"is_encrypted"`
	ExpiresAt   *time.Time  `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"timestamp"`
}

// Expired reports whether the message must no longer be shown at now.
func (m Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// MessageInput is what a sender supplies.
type MessageInput struct {
	Content    string      `json:"content"`
	Type       MessageType `json:"message_type"`
	StickerURL *string     `json:"sticker_url"`
	FileURL    *string     `json:"file_url"`
	FileName   *string     `json:"file_name"`
	FileSize   *int64      `json:"file_size"`
	ExpiresIn  *int        `json:"expires_in"`
}
