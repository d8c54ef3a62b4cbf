package services

import (
	"time"

	"emi-service/internal/models"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func channelChat(id, owner int64, subscribers ...int64) models.Chat {
	o := owner
	return models.Chat{
		ID:              id,
		Type:            models.ChatTypeChannel,
		Name:            "news",
		Participants:    append([]int64{owner}, subscribers...),
		Admins:          []int64{owner},
		OwnerID:         &o,
		IsPublic:        true,
		SubscriberCount: 1 + len(subscribers),
		BackgroundStyle: models.DefaultBackgroundStyle,
	}
}

func groupChat(id, admin int64, members ...int64) models.Chat {
	return models.Chat{
		ID:           id,
		Type:         models.ChatTypeGroup,
		Name:         "team",
		Participants: append([]int64{admin}, members...),
		Admins:       []int64{admin},
	}
}

func secretChat(id int64, timer *int, members ...int64) models.Chat {
	return models.Chat{
		ID:           id,
		Type:         models.ChatTypeSecret,
		Name:         "hush",
		Participants: members,
		Admins:       members[:1],
		IsSecret:     true,
		SecretTimer:  timer,
	}
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }
