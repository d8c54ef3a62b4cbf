package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"emi-service/internal/access"
	"emi-service/internal/apperr"
	"emi-service/internal/models"
	"emi-service/internal/observability"
	"emi-service/internal/repositories"
	"emi-service/internal/telemetry"
)

const (
	DefaultPostLimit      = 10
	MaxPostLimit          = 100
	MaxReactionTypeLength = 32

	postEvents = "domain_events.posts"
)

// PostService runs the channel feed: sequenced posts and reactions.
type PostService struct {
	chats  repositories.ChatRepository
	posts  repositories.PostRepository
	notify notifier
	now    func() time.Time
}

func NewPostService(chats repositories.ChatRepository, posts repositories.PostRepository, audit *telemetry.AuditEmitter) *PostService {
	return &PostService{chats: chats, posts: posts, notify: notifier{audit: audit}, now: utcNow}
}

// Create publishes a post to channelID. Only the owner and admins post.
func (s *PostService) Create(ctx context.Context, channelID, authorID int64, in models.PostInput) (post models.Post, err error) {
	ctx, span := tracer.Start(ctx, "PostService.Create")
	defer func() { finish(span, err) }()

	channel, err := s.chats.GetChat(ctx, channelID)
	if err != nil {
		return models.Post{}, storeErr("load channel", err)
	}
	if !channel.IsChannel() {
		return models.Post{}, apperr.InvalidInput("not a channel")
	}
	if !access.CanManageChannel(channel, authorID) {
		return models.Post{}, apperr.Forbidden("only channel admins can post")
	}

	draft, err := buildPost(in)
	if err != nil {
		return models.Post{}, err
	}
	now := s.now()
	draft.ChannelID = channelID
	draft.AuthorID = authorID
	draft.CreatedAt = now
	draft.UpdatedAt = now

	post, err = s.posts.CreatePost(ctx, draft)
	if err != nil {
		return models.Post{}, storeErr("create post", err)
	}
	observability.IncPostCreated()
	s.notify.record(ctx, authorID, "post created", postEvents, "post_created", map[string]interface{}{
		"post_id":         post.ID,
		"channel_id":      channelID,
		"sequence_number": post.SequenceNumber,
	})
	return post, nil
}

// buildPost normalizes the payload and derives the post type.
func buildPost(in models.PostInput) (models.Post, error) {
	text := optionalString(in.Text)
	mediaURL := optionalString(in.MediaURL)
	if text == nil && mediaURL == nil {
		return models.Post{}, apperr.InvalidInput("post must have text or media")
	}

	post := models.Post{Text: text, PostType: models.PostTypeText, Reactions: models.Reactions{}}
	if mediaURL != nil {
		if in.MediaType == nil || !in.MediaType.Valid() {
			return models.Post{}, apperr.InvalidInput("media_type must be image or video")
		}
		mediaType := *in.MediaType
		post.MediaURL = mediaURL
		post.MediaType = &mediaType
		post.PostType = models.PostTypeMedia
	} else if in.MediaType != nil {
		return models.Post{}, apperr.InvalidInput("media_type requires media_url")
	}
	return post, nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// List pages the feed backwards from beforeSequence (exclusive), returning
// posts in ascending sequence order.
func (s *PostService) List(ctx context.Context, channelID, userID int64, limit int, beforeSequence *int64) (models.PostPage, error) {
	if limit < 1 || limit > MaxPostLimit {
		return models.PostPage{}, apperr.InvalidInput("limit must be between 1 and 100")
	}
	if beforeSequence != nil && *beforeSequence < 1 {
		return models.PostPage{}, apperr.InvalidInput("before_sequence must be positive")
	}

	channel, err := s.chats.GetChat(ctx, channelID)
	if err != nil {
		return models.PostPage{}, storeErr("load channel", err)
	}
	if !channel.IsChannel() {
		return models.PostPage{}, apperr.InvalidInput("not a channel")
	}
	if !access.CanRead(channel, userID) {
		return models.PostPage{}, apperr.Forbidden("not subscribed to channel")
	}

	posts, err := s.posts.ListPosts(ctx, channelID, limit, beforeSequence)
	if err != nil {
		return models.PostPage{}, storeErr("list posts", err)
	}
	return models.PostPage{Posts: posts, HasMore: len(posts) == limit}, nil
}

// Delete removes a post. Channel managers may delete any post, authors
// their own.
func (s *PostService) Delete(ctx context.Context, postID, userID int64) error {
	post, channel, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if !access.CanDeletePost(post, channel, userID) {
		return apperr.Forbidden("not allowed to delete this post")
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return storeErr("delete post", err)
	}
	s.notify.record(ctx, userID, "post deleted", postEvents, "post_deleted", map[string]interface{}{
		"post_id":    postID,
		"channel_id": post.ChannelID,
	})
	return nil
}

// ToggleReaction adds or removes userID's reaction of reactionType and
// returns the post's reaction map afterwards.
func (s *PostService) ToggleReaction(ctx context.Context, postID, userID int64, reactionType string) (result models.Reactions, err error) {
	ctx, span := tracer.Start(ctx, "PostService.ToggleReaction")
	defer func() { finish(span, err) }()

	reactionType = strings.TrimSpace(reactionType)
	if reactionType == "" {
		return nil, apperr.InvalidInput("reaction type required")
	}
	if utf8.RuneCountInString(reactionType) > MaxReactionTypeLength {
		return nil, apperr.InvalidInput("reaction type too long")
	}

	_, channel, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(channel, userID) {
		return nil, apperr.Forbidden("not subscribed to channel")
	}

	result, action, err := s.posts.ToggleReaction(ctx, postID, userID, reactionType)
	if err != nil {
		if errors.Is(err, apperr.ErrLimitExceeded) {
			observability.IncReaction("rejected")
		}
		return nil, storeErr("toggle reaction", err)
	}
	observability.IncReaction(action.String())
	return result, nil
}

func (s *PostService) loadPost(ctx context.Context, postID int64) (models.Post, models.Chat, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return models.Post{}, models.Chat{}, storeErr("load post", err)
	}
	channel, err := s.chats.GetChat(ctx, post.ChannelID)
	if err != nil {
		return models.Post{}, models.Chat{}, storeErr("load channel", err)
	}
	return post, channel, nil
}
