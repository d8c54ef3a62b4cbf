package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"emi-service/internal/apperr"
	"emi-service/internal/models"
)

var ErrUserNotFound = apperr.NotFound("user not found")

// UserRepository abstracts wallet user persistence.
type UserRepository interface {
	UpsertWalletUser(ctx context.Context, user models.User) (models.User, bool, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	SetOffline(ctx context.Context, userID int64) error
	UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error)
	SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, wallet_address, network, username, avatar, trust_score, is_online, last_seen, created_at, updated_at`

// UpsertWalletUser creates the user identified by (wallet_address, network)
// or marks the existing one online. The bool reports whether a row was
// created. Username and avatar of an existing user are never overwritten.
func (r *UserRepo) UpsertWalletUser(ctx context.Context, user models.User) (models.User, bool, error) {
	var row struct {
		models.User
		Inserted bool `db:"inserted"`
	}
	err := r.db.GetContext(ctx, &row, `INSERT INTO users (wallet_address, network, username, avatar, is_online, last_seen)
        VALUES ($1, $2, $3, $4, TRUE, NOW())
        ON CONFLICT (wallet_address, network)
        DO UPDATE SET is_online = TRUE, last_seen = NOW(), updated_at = NOW()
        RETURNING `+userColumns+`, (xmax = 0) AS inserted`,
		user.WalletAddress, string(user.Network), user.Username, user.Avatar)
	if err != nil {
		return models.User{}, false, err
	}
	return row.User, row.Inserted, nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SetOffline marks the user offline and records last_seen.
func (r *UserRepo) SetOffline(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = FALSE, last_seen = NOW(), updated_at = NOW() WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile changes username and avatar. Nil fields are kept.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	sets := []string{}
	args := []any{}
	if update.Username != nil {
		args = append(args, strings.TrimSpace(*update.Username))
		sets = append(sets, fmt.Sprintf("username=$%d", len(args)))
	}
	if update.Avatar != nil {
		args = append(args, *update.Avatar)
		sets = append(sets, fmt.Sprintf("avatar=$%d", len(args)))
	}
	if len(sets) == 0 {
		return models.User{}, apperr.InvalidInput("no valid fields to update")
	}
	args = append(args, userID)

	var user models.User
	err := r.db.GetContext(ctx, &user, fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SearchUsers matches username or wallet address, excluding excludeID.
func (r *UserRepo) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE id <> $1 AND (username ILIKE $2 OR wallet_address ILIKE $2)
        ORDER BY id LIMIT $3`, excludeID, likePattern(query), limit)
	return users, err
}
