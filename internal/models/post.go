package models

import "time"

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

func (t MediaType) Valid() bool {
	return t == MediaTypeImage || t == MediaTypeVideo
}

type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeMedia PostType = "media"
)

// Reactions maps a reaction type to the users holding it.
type Reactions map[string][]int64

// Post is a channel feed entry. SequenceNumber is unique per channel and
// never reused.
type Post struct {
	ID             int64      `db:"id" json:"id"`
	ChannelID      int64      `db:"channel_id" json:"channel_id"`
	AuthorID       int64      `db:"author_id" json:"author_id"`
	SequenceNumber int64      `db:"sequence_number" json:"sequence_number"`
	Text           *string    `db:"text" json:"text,omitempty"`
	MediaURL       *string    `db:"media_url" json:"media_url,omitempty"`
	MediaType      *MediaType `db:"media_type" json:"media_type,omitempty"`
	PostType       PostType   `db:"post_type" json:"post_type"`
	Reactions      Reactions  `db:"-" json:"reactions"`
	Views          int        `db:"views" json:"views"`
	CommentsCount  int        `db:"comments_count" json:"comments_count"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PostInput is the payload of a new post.
type PostInput struct {
	Text      *string    `json:"text"`
	MediaURL  *string    `json:"media_url"`
	MediaType *MediaType `json:"media_type"`
}

// PostPage is one page of a channel feed in ascending sequence order.
type PostPage struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"has_more"`
}
