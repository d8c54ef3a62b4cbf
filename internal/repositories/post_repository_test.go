package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emi-service/internal/apperr"
	"emi-service/internal/models"
	"emi-service/internal/reactions"
)

var postRowColumns = []string{
	"id", "channel_id", "author_id", "sequence_number", "text", "media_url", "media_type", "post_type",
	"views", "comments_count", "created_at", "updated_at",
}

func TestCreatePostAssignsCounterValue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)
	now := time.Unix(1700000000, 0).UTC()
	text := "hello"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE chats SET post_seq = post_seq + 1`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"post_seq"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO posts`)).
		WithArgs(int64(4), int64(1), int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "text", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(postRowColumns).AddRow(int64(30), int64(4), int64(1), int64(3), text, nil, nil, "text", 0, 0, now, now))
	mock.ExpectCommit()

	post, err := repo.CreatePost(context.Background(), models.Post{ChannelID: 4, AuthorID: 1, Text: &text, PostType: models.PostTypeText})
	require.NoError(t, err)
	assert.Equal(t, int64(3), post.SequenceNumber)
	assert.NotNil(t, post.Reactions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePostRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE chats SET post_seq = post_seq + 1`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"post_seq"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO posts`)).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.CreatePost(context.Background(), models.Post{ChannelID: 4, AuthorID: 1, PostType: models.PostTypeText})
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePostOnMissingChannel(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE chats SET post_seq = post_seq + 1`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"post_seq"}))
	mock.ExpectRollback()

	_, err := repo.CreatePost(context.Background(), models.Post{ChannelID: 4, AuthorID: 1})
	assert.Equal(t, ErrChatNotFound, err)
}

func TestListPostsReversesAndAttachesReactions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)
	now := time.Unix(1700000000, 0).UTC()
	before := int64(15)

	rows := sqlmock.NewRows(postRowColumns)
	for seq := int64(14); seq >= 10; seq-- {
		rows.AddRow(seq*10, int64(4), int64(1), seq, "p", nil, nil, "text", 0, 0, now, now)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`sequence_number < $2`)).
		WithArgs(int64(4), before, 5).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM post_reactions`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "reaction_type", "user_id"}).
			AddRow(int64(120), "like", int64(2)).
			AddRow(int64(120), "like", int64(3)))

	posts, err := repo.ListPosts(context.Background(), 4, 5, &before)
	require.NoError(t, err)
	require.Len(t, posts, 5)
	for i, p := range posts {
		assert.Equal(t, int64(10+i), p.SequenceNumber)
		assert.NotNil(t, p.Reactions)
	}
	assert.Equal(t, []int64{2, 3}, posts[2].Reactions["like"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePostMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM posts WHERE id=$1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeletePost(context.Background(), 5)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestToggleReactionAddsUnderLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM posts WHERE id=$1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM post_reactions`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "reaction_type", "user_id"}).
			AddRow(int64(5), "like", int64(2)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO post_reactions`)).
		WithArgs(int64(5), "like", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET updated_at = NOW()`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, action, err := repo.ToggleReaction(context.Background(), 5, 9, "like")
	require.NoError(t, err)
	assert.Equal(t, reactions.Added, action)
	assert.Equal(t, models.Reactions{"like": {2, 9}}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleReactionRejectsFourthType(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM posts WHERE id=$1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM post_reactions`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "reaction_type", "user_id"}).
			AddRow(int64(5), "like", int64(9)).
			AddRow(int64(5), "love", int64(9)).
			AddRow(int64(5), "fire", int64(9)))
	mock.ExpectRollback()

	_, _, err := repo.ToggleReaction(context.Background(), 5, 9, "wow")
	assert.Equal(t, reactions.ErrUserLimit, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleReactionMissingPost(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM posts WHERE id=$1 FOR UPDATE`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := repo.ToggleReaction(context.Background(), 5, 9, "wow")
	assert.Equal(t, ErrPostNotFound, err)
}
