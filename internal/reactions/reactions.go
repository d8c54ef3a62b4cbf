// Package reactions implements the bounded multi-reaction policy for posts.
package reactions

import (
	"sort"

	"emi-service/internal/apperr"
	"emi-service/internal/models"
)

const (
	MaxPerUser = 3
	MaxTypes   = 6
)

var (
	ErrUserLimit = apperr.LimitExceeded("max 3 reactions per user")
	ErrTypeLimit = apperr.LimitExceeded("max 6 reaction types per post")
)

// Action is the effect of a successful Toggle.
type Action int

const (
	Added Action = iota
	Removed
)

func (a Action) String() string {
	if a == Removed {
		return "removed"
	}
	return "added"
}

// Toggle applies one reaction toggle by userID to current and returns the
// resulting map. current is not modified. Reacting with a held type removes
// it and drops the key once empty; a new type is added only while the user
// holds fewer than MaxPerUser types and the post has room for the key.
func Toggle(current models.Reactions, userID int64, reactionType string) (models.Reactions, Action, error) {
	next := Clone(current)

	if holders, ok := next[reactionType]; ok && contains(holders, userID) {
		holders = remove(holders, userID)
		if len(holders) == 0 {
			delete(next, reactionType)
		} else {
			next[reactionType] = holders
		}
		return next, Removed, nil
	}

	if len(UserTypes(next, userID)) >= MaxPerUser {
		return nil, Added, ErrUserLimit
	}
	if _, ok := next[reactionType]; !ok && len(next) >= MaxTypes {
		return nil, Added, ErrTypeLimit
	}
	next[reactionType] = append(next[reactionType], userID)
	return next, Added, nil
}

// UserTypes returns the reaction types userID currently holds, sorted.
func UserTypes(m models.Reactions, userID int64) []string {
	var out []string
	for t, holders := range m {
		if contains(holders, userID) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies m. A nil map clones to an empty one.
func Clone(m models.Reactions) models.Reactions {
	out := make(models.Reactions, len(m))
	for t, holders := range m {
		if len(holders) == 0 {
			continue
		}
		out[t] = append([]int64(nil), holders...)
	}
	return out
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
