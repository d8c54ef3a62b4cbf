// Package access holds the membership and role rules for chats, channels
// and posts. Every predicate is pure and works on already-loaded entities.
package access

import "emi-service/internal/models"

// CanRead reports whether userID may read the chat's messages or feed.
func CanRead(chat models.Chat, userID int64) bool {
	return chat.HasParticipant(userID)
}

// CanWriteMessage reports whether userID may author a message in chat.
// Channels restrict authorship to admins and the owner unless
// allow_all_messages is set.
func CanWriteMessage(chat models.Chat, userID int64) bool {
	if !chat.HasParticipant(userID) {
		return false
	}
	if !chat.IsChannel() || chat.AllowAllMessages {
		return true
	}
	return chat.HasAdmin(userID) || chat.IsOwner(userID)
}

// CanManageChannel reports whether userID may edit settings and publish
// posts. The owner keeps this right even after leaving the admin set.
func CanManageChannel(chat models.Chat, userID int64) bool {
	return chat.IsOwner(userID) || chat.HasAdmin(userID)
}

// CanDeletePost reports whether userID may delete post from channel.
func CanDeletePost(post models.Post, channel models.Chat, userID int64) bool {
	return CanManageChannel(channel, userID) || post.AuthorID == userID
}
