package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"emi-service/internal/apperr"
	"emi-service/internal/models"
)

var (
	ErrChatNotFound      = apperr.NotFound("chat not found")
	ErrAlreadyMember     = apperr.Conflict("already subscribed")
	ErrUsernameTaken     = apperr.Conflict("channel username already taken")
	ErrPersonalContended = apperr.Conflict("personal chat creation contended, retry")
)

// maxCreateAttempts bounds the find-or-insert loop for personal chats.
const maxCreateAttempts = 3

// searchLimit caps chat search results.
const searchLimit = 20

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat models.Chat) (models.Chat, error)
	CreatePersonal(ctx context.Context, chat models.Chat) (models.Chat, error)
	FindPersonalChatBetween(ctx context.Context, a, b int64) (models.Chat, error)
	ChannelUsernameTaken(ctx context.Context, username string) (bool, error)
	GetChat(ctx context.Context, chatID int64) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int64, chatType models.ChatType) ([]models.Chat, error)
	UpdateSettings(ctx context.Context, chatID int64, update models.ChatSettingsUpdate) (models.Chat, error)
	AddParticipant(ctx context.Context, chatID int64, userID int64) (models.Chat, error)
	TogglePin(ctx context.Context, chatID int64) (bool, error)
	SearchChats(ctx context.Context, filter models.ChatFilter) ([]models.Chat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `c.id, c.chat_type, c.name, c.description, c.avatar, c.is_secret, c.secret_timer,
        c.is_public, c.channel_username, c.subscriber_count, c.owner_id, c.allow_all_messages,
        c.background_style, c.is_pinned, c.created_by, c.last_message_id, c.last_message_time,
        c.created_at, c.updated_at,
        ARRAY(SELECT p.user_id FROM chat_participants p WHERE p.chat_id = c.id ORDER BY p.joined_at, p.user_id) AS participants,
        ARRAY(SELECT a.user_id FROM chat_admins a WHERE a.chat_id = c.id ORDER BY a.user_id) AS admins`

type chatRow struct {
	ID               int64          `db:"id"`
	Type             string         `db:"chat_type"`
	Name             string         `db:"name"`
	Description      string         `db:"description"`
	Avatar           string         `db:"avatar"`
	IsSecret         bool           `db:"is_secret"`
	SecretTimer      sql.NullInt32  `db:"secret_timer"`
	IsPublic         bool           `db:"is_public"`
	ChannelUsername  sql.NullString `db:"channel_username"`
	SubscriberCount  int            `db:"subscriber_count"`
	OwnerID          sql.NullInt64  `db:"owner_id"`
	AllowAllMessages bool           `db:"allow_all_messages"`
	BackgroundStyle  string         `db:"background_style"`
	IsPinned         bool           `db:"is_pinned"`
	CreatedBy        int64          `db:"created_by"`
	LastMessageID    sql.NullInt64  `db:"last_message_id"`
	LastMessageTime  sql.NullTime   `db:"last_message_time"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	Participants     pq.Int64Array  `db:"participants"`
	Admins           pq.Int64Array  `db:"admins"`
}

func (r chatRow) toModel() models.Chat {
	chat := models.Chat{
		ID:               r.ID,
		Type:             models.ChatType(r.Type),
		Name:             r.Name,
		Description:      r.Description,
		Avatar:           r.Avatar,
		Participants:     []int64(r.Participants),
		Admins:           []int64(r.Admins),
		IsSecret:         r.IsSecret,
		IsPublic:         r.IsPublic,
		SubscriberCount:  r.SubscriberCount,
		AllowAllMessages: r.AllowAllMessages,
		BackgroundStyle:  r.BackgroundStyle,
		IsPinned:         r.IsPinned,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if chat.Participants == nil {
		chat.Participants = []int64{}
	}
	if chat.Admins == nil {
		chat.Admins = []int64{}
	}
	if r.SecretTimer.Valid {
		v := int(r.SecretTimer.Int32)
		chat.SecretTimer = &v
	}
	if r.ChannelUsername.Valid {
		v := r.ChannelUsername.String
		chat.ChannelUsername = &v
	}
	if r.OwnerID.Valid {
		v := r.OwnerID.Int64
		chat.OwnerID = &v
	}
	if r.LastMessageID.Valid {
		v := r.LastMessageID.Int64
		chat.LastMessageID = &v
	}
	if r.LastMessageTime.Valid {
		v := r.LastMessageTime.Time
		chat.LastMessageTime = &v
	}
	return chat
}

// CreateChat stores a group, secret chat or channel together with its
// participant and admin sets. A public channel whose username is already
// claimed fails with ErrUsernameTaken.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.Chat) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertChat(ctx, tx, chat, nil, nil)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Chat{}, ErrUsernameTaken
		}
		return models.Chat{}, err
	}
	if err := insertMembers(ctx, tx, id, chat); err != nil {
		return models.Chat{}, err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.Chat{}, ErrUsernameTaken
		}
		return models.Chat{}, err
	}
	return r.GetChat(ctx, id)
}

// CreatePersonal returns the personal chat between the two participants of
// chat, creating it when absent. Concurrent callers converge on one row.
func (r *ChatRepo) CreatePersonal(ctx context.Context, chat models.Chat) (models.Chat, error) {
	if len(chat.Participants) != 2 {
		return models.Chat{}, apperr.InvalidInput("personal chat needs two participants")
	}
	low, high := models.PersonalPair(chat.Participants[0], chat.Participants[1])

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		existing, err := r.FindPersonalChatBetween(ctx, low, high)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrChatNotFound) {
			return models.Chat{}, err
		}

		id, inserted, err := r.tryInsertPersonal(ctx, chat, low, high)
		if err != nil {
			return models.Chat{}, err
		}
		if inserted {
			return r.GetChat(ctx, id)
		}
	}
	return models.Chat{}, ErrPersonalContended
}

func (r *ChatRepo) tryInsertPersonal(ctx context.Context, chat models.Chat, low, high int64) (int64, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertChat(ctx, tx, chat, &low, &high)
	if errors.Is(err, sql.ErrNoRows) {
		// another request created the pair first
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if err := insertMembers(ctx, tx, id, chat); err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func insertChat(ctx context.Context, tx *sqlx.Tx, chat models.Chat, peerLow, peerHigh *int64) (int64, error) {
	query := `INSERT INTO chats (chat_type, name, description, avatar, is_secret, secret_timer, is_public,
            channel_username, subscriber_count, owner_id, allow_all_messages, background_style,
            created_by, peer_low, peer_high, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`
	if peerLow != nil {
		query += ` ON CONFLICT (peer_low, peer_high) WHERE chat_type = 'personal' DO NOTHING`
	}
	query += ` RETURNING id`

	createdAt := chat.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err := tx.QueryRowxContext(ctx, query,
		string(chat.Type), chat.Name, chat.Description, chat.Avatar, chat.IsSecret, chat.SecretTimer, chat.IsPublic,
		chat.ChannelUsername, chat.SubscriberCount, chat.OwnerID, chat.AllowAllMessages, chat.BackgroundStyle,
		chat.CreatedBy, peerLow, peerHigh, createdAt,
	).Scan(&id)
	return id, err
}

func insertMembers(ctx context.Context, tx *sqlx.Tx, chatID int64, chat models.Chat) error {
	if len(chat.Participants) > 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id)
            SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, chatID, pq.Array(chat.Participants)); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
	}
	if len(chat.Admins) > 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_admins (chat_id, user_id)
            SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, chatID, pq.Array(chat.Admins)); err != nil {
			return fmt.Errorf("insert admins: %w", err)
		}
	}
	return nil
}

// FindPersonalChatBetween returns the personal chat of the unordered pair.
func (r *ChatRepo) FindPersonalChatBetween(ctx context.Context, a, b int64) (models.Chat, error) {
	low, high := models.PersonalPair(a, b)
	var row chatRow
	err := r.db.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats c
        WHERE c.chat_type = 'personal' AND c.peer_low=$1 AND c.peer_high=$2`, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return row.toModel(), nil
}

// ChannelUsernameTaken reports whether a public channel already claims
// username. The unique index remains the source of truth.
func (r *ChatRepo) ChannelUsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats
        WHERE chat_type = 'channel' AND is_public AND channel_username=$1)`, username)
	return exists, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	var row chatRow
	err := r.db.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats c WHERE c.id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return row.toModel(), nil
}

// ListChatsForUser returns the chats userID participates in, most recently
// updated first. An empty chatType lists every variant.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int64, chatType models.ChatType) ([]models.Chat, error) {
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+chatColumns+` FROM chats c
        INNER JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id=$1
        WHERE ($2::text = '' OR c.chat_type = $2)
        ORDER BY c.updated_at DESC, c.id DESC`, userID, string(chatType))
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// UpdateSettings applies the non-nil fields of update.
func (r *ChatRepo) UpdateSettings(ctx context.Context, chatID int64, update models.ChatSettingsUpdate) (models.Chat, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", strings.TrimSpace(*update.Name))
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Avatar != nil {
		add("avatar", *update.Avatar)
	}
	if update.AllowAllMessages != nil {
		add("allow_all_messages", *update.AllowAllMessages)
	}
	if update.BackgroundStyle != nil {
		add("background_style", *update.BackgroundStyle)
	}
	if len(sets) == 0 {
		return models.Chat{}, apperr.InvalidInput("no valid fields to update")
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, chatID)

	query := fmt.Sprintf(`UPDATE chats SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Chat{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Chat{}, err
	}
	if count == 0 {
		return models.Chat{}, ErrChatNotFound
	}
	return r.GetChat(ctx, chatID)
}

// AddParticipant subscribes userID to the chat. The participant row and the
// subscriber counter change in one transaction, so the counter always equals
// the size of the participant set.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID int64, userID int64) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)
        ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID)
	if err != nil {
		return models.Chat{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.Chat{}, err
	}
	if inserted == 0 {
		return models.Chat{}, ErrAlreadyMember
	}

	res, err = tx.ExecContext(ctx, `UPDATE chats SET subscriber_count = subscriber_count + 1, updated_at = NOW() WHERE id=$1`, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Chat{}, err
	} else if n == 0 {
		return models.Chat{}, ErrChatNotFound
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return r.GetChat(ctx, chatID)
}

// TogglePin flips the pinned flag and returns the new value.
func (r *ChatRepo) TogglePin(ctx context.Context, chatID int64) (bool, error) {
	var pinned bool
	err := r.db.GetContext(ctx, &pinned, `UPDATE chats SET is_pinned = NOT is_pinned, updated_at = NOW() WHERE id=$1 RETURNING is_pinned`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrChatNotFound
	}
	return pinned, err
}

// SearchChats matches public channels by name, username or description when
// filter.Type is channel, and otherwise the caller's own chats by name.
func (r *ChatRepo) SearchChats(ctx context.Context, filter models.ChatFilter) ([]models.Chat, error) {
	limit := filter.Limit
	if limit <= 0 || limit > searchLimit {
		limit = searchLimit
	}
	pattern := likePattern(filter.Query)

	var rows []chatRow
	var err error
	if filter.Type == models.ChatTypeChannel {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+chatColumns+` FROM chats c
            WHERE c.chat_type = 'channel' AND c.is_public
            AND (c.name ILIKE $1 OR c.channel_username ILIKE $1 OR c.description ILIKE $1)
            ORDER BY c.updated_at DESC, c.id DESC LIMIT $2`, pattern, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+chatColumns+` FROM chats c
            INNER JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id=$1
            WHERE c.name ILIKE $2 AND ($3::text = '' OR c.chat_type = $3)
            ORDER BY c.updated_at DESC, c.id DESC LIMIT $4`, filter.UserID, pattern, string(filter.Type), limit)
	}
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func toModels(rows []chatRow) []models.Chat {
	out := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns free text into a substring ILIKE pattern.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
