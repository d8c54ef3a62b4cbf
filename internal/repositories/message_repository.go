package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"emi-service/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, chatID int64, offset, limit int, now time.Time) ([]models.Message, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, sender_id, content, message_type, sticker_url, file_url, file_name,
        file_size, is_encrypted, expires_at, created_at`

// CreateMessage appends msg to its chat and moves the chat's last-message
// pointer in the same transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var stored models.Message
	err = tx.GetContext(ctx, &stored, `INSERT INTO messages (chat_id, sender_id, content, message_type, sticker_url,
            file_url, file_name, file_size, is_encrypted, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+messageColumns,
		msg.ChatID, msg.SenderID, msg.Content, string(msg.Type), msg.StickerURL,
		msg.FileURL, msg.FileName, msg.FileSize, msg.IsEncrypted, msg.ExpiresAt, createdAt)
	if err != nil {
		return models.Message{}, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE chats SET last_message_id=$1, last_message_time=$2, updated_at=$2 WHERE id=$3`,
		stored.ID, stored.CreatedAt, stored.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Message{}, err
	} else if n == 0 {
		return models.Message{}, ErrChatNotFound
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return stored, nil
}

// ListMessages returns one newest-first page of unexpired messages,
// reordered oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int64, offset, limit int, now time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE chat_id=$1 AND (expires_at IS NULL OR expires_at > $2)
        ORDER BY created_at DESC, id DESC
        OFFSET $3 LIMIT $4`, chatID, now, offset, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// PurgeExpired deletes messages whose expiry passed. Chats whose
// last-message pointer referenced one of them are repointed at their newest
// surviving message, or cleared when none is left.
func (r *MessageRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE chats c SET (last_message_id, last_message_time) = (
            SELECT m.id, m.created_at FROM messages m
            WHERE m.chat_id = c.id AND (m.expires_at IS NULL OR m.expires_at > $1)
            ORDER BY m.created_at DESC, m.id DESC LIMIT 1)
        WHERE c.last_message_id IN (SELECT id FROM messages WHERE expires_at IS NOT NULL AND expires_at <= $1)`, now); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return purged, nil
}
