package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"emi-service/internal/apperr"
	"emi-service/internal/models"
	"emi-service/internal/repositories"
)

const (
	DefaultUserSearchLimit = 10
	MaxUserSearchLimit     = 50
	MaxUsernameLength      = 32
)

type UserService struct {
	users repositories.UserRepository
}

func NewUserService(users repositories.UserRepository) *UserService {
	return &UserService{users: users}
}

// Search matches username or wallet address, never returning the caller.
func (s *UserService) Search(ctx context.Context, userID int64, query string, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidInput("query required")
	}
	if limit < 1 || limit > MaxUserSearchLimit {
		return nil, apperr.InvalidInput("limit must be between 1 and 50")
	}
	users, err := s.users.SearchUsers(ctx, query, userID, limit)
	if err != nil {
		return nil, storeErr("search users", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, storeErr("load user", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	if update.Username == nil && update.Avatar == nil {
		return models.User{}, apperr.InvalidInput("no valid fields to update")
	}
	if update.Username != nil {
		name := strings.TrimSpace(*update.Username)
		if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
			return models.User{}, apperr.InvalidInput("username must be 1-32 characters")
		}
		update.Username = &name
	}
	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return models.User{}, storeErr("update profile", err)
	}
	return user, nil
}
