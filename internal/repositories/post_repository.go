package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"emi-service/internal/apperr"
	"emi-service/internal/models"
	"emi-service/internal/reactions"
)

var ErrPostNotFound = apperr.NotFound("post not found")

// PostRepository abstracts channel feed persistence.
type PostRepository interface {
	CreatePost(ctx context.Context, post models.Post) (models.Post, error)
	ListPosts(ctx context.Context, channelID int64, limit int, beforeSequence *int64) ([]models.Post, error)
	GetPost(ctx context.Context, postID int64) (models.Post, error)
	DeletePost(ctx context.Context, postID int64) error
	ToggleReaction(ctx context.Context, postID, userID int64, reactionType string) (models.Reactions, reactions.Action, error)
}

// PostRepo is a sqlx implementation of PostRepository.
type PostRepo struct {
	db *sqlx.DB
}

// NewPostRepo constructs a PostRepo.
func NewPostRepo(db *sqlx.DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `id, channel_id, author_id, sequence_number, text, media_url, media_type, post_type,
        views, comments_count, created_at, updated_at`

// CreatePost assigns the next sequence number of the channel and stores the
// post. The counter row lock serializes concurrent authors and a failed
// insert rolls the counter back, so numbers are dense and never reused.
func (r *PostRepo) CreatePost(ctx context.Context, post models.Post) (models.Post, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Post{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	err = tx.GetContext(ctx, &seq, `UPDATE chats SET post_seq = post_seq + 1, updated_at = NOW()
        WHERE id=$1 AND chat_type = 'channel' RETURNING post_seq`, post.ChannelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrChatNotFound
	}
	if err != nil {
		return models.Post{}, err
	}

	createdAt := post.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var stored models.Post
	err = tx.GetContext(ctx, &stored, `INSERT INTO posts (channel_id, author_id, sequence_number, text, media_url,
            media_type, post_type, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        RETURNING `+postColumns,
		post.ChannelID, post.AuthorID, seq, post.Text, post.MediaURL, post.MediaType, string(post.PostType), createdAt)
	if err != nil {
		return models.Post{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Post{}, err
	}
	stored.Reactions = models.Reactions{}
	return stored, nil
}

// ListPosts returns up to limit posts with sequence_number below
// beforeSequence (all posts when nil), in ascending sequence order.
func (r *PostRepo) ListPosts(ctx context.Context, channelID int64, limit int, beforeSequence *int64) ([]models.Post, error) {
	var posts []models.Post
	var err error
	if beforeSequence != nil {
		err = r.db.SelectContext(ctx, &posts, `SELECT `+postColumns+` FROM posts
            WHERE channel_id=$1 AND sequence_number < $2
            ORDER BY sequence_number DESC LIMIT $3`, channelID, *beforeSequence, limit)
	} else {
		err = r.db.SelectContext(ctx, &posts, `SELECT `+postColumns+` FROM posts
            WHERE channel_id=$1
            ORDER BY sequence_number DESC LIMIT $2`, channelID, limit)
	}
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	if posts == nil {
		return []models.Post{}, nil
	}

	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	byPost, err := loadReactions(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Reactions = byPost[posts[i].ID]
		if posts[i].Reactions == nil {
			posts[i].Reactions = models.Reactions{}
		}
	}
	return posts, nil
}

// GetPost fetches a post with its reactions.
func (r *PostRepo) GetPost(ctx context.Context, postID int64) (models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id=$1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrPostNotFound
	}
	if err != nil {
		return models.Post{}, err
	}
	byPost, err := loadReactions(ctx, r.db, []int64{postID})
	if err != nil {
		return models.Post{}, err
	}
	post.Reactions = byPost[postID]
	if post.Reactions == nil {
		post.Reactions = models.Reactions{}
	}
	return post, nil
}

// DeletePost removes a post and its reactions. The channel counter is left
// untouched so the sequence number is never handed out again.
func (r *PostRepo) DeletePost(ctx context.Context, postID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ToggleReaction applies reactions.Toggle to the stored reaction state while
// holding the post row lock, so concurrent toggles on one post never lose an
// update.
func (r *PostRepo) ToggleReaction(ctx context.Context, postID, userID int64, reactionType string) (models.Reactions, reactions.Action, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, reactions.Added, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	err = tx.GetContext(ctx, &locked, `SELECT id FROM posts WHERE id=$1 FOR UPDATE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reactions.Added, ErrPostNotFound
	}
	if err != nil {
		return nil, reactions.Added, err
	}

	byPost, err := loadReactions(ctx, tx, []int64{postID})
	if err != nil {
		return nil, reactions.Added, err
	}
	next, action, err := reactions.Toggle(byPost[postID], userID, reactionType)
	if err != nil {
		return nil, action, err
	}

	switch action {
	case reactions.Added:
		_, err = tx.ExecContext(ctx, `INSERT INTO post_reactions (post_id, reaction_type, user_id) VALUES ($1, $2, $3)`,
			postID, reactionType, userID)
	case reactions.Removed:
		_, err = tx.ExecContext(ctx, `DELETE FROM post_reactions WHERE post_id=$1 AND reaction_type=$2 AND user_id=$3`,
			postID, reactionType, userID)
	}
	if err != nil {
		return nil, action, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE posts SET updated_at = NOW() WHERE id=$1`, postID); err != nil {
		return nil, action, err
	}

	if err := tx.Commit(); err != nil {
		return nil, action, err
	}
	return next, action, nil
}

type reactionRow struct {
	PostID       int64  `db:"post_id"`
	ReactionType string `db:"reaction_type"`
	UserID       int64  `db:"user_id"`
}

func loadReactions(ctx context.Context, q sqlx.QueryerContext, postIDs []int64) (map[int64]models.Reactions, error) {
	var rows []reactionRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT post_id, reaction_type, user_id FROM post_reactions
        WHERE post_id = ANY($1) ORDER BY created_at, user_id`, pq.Array(postIDs)); err != nil {
		return nil, err
	}
	out := make(map[int64]models.Reactions, len(postIDs))
	for _, row := range rows {
		m, ok := out[row.PostID]
		if !ok {
			m = models.Reactions{}
			out[row.PostID] = m
		}
		m[row.ReactionType] = append(m[row.ReactionType], row.UserID)
	}
	return out, nil
}
