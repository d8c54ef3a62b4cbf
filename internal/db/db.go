package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect opens the pool and applies migrations, so callers need not run
// Migrate again.
func Connect(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            wallet_address TEXT NOT NULL,
            network TEXT NOT NULL,
            username TEXT,
            avatar TEXT,
            trust_score INT NOT NULL DEFAULT 0,
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(wallet_address, network)
        );`,
	`CREATE TABLE IF NOT EXISTS chats (
            id BIGSERIAL PRIMARY KEY,
            chat_type TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            avatar TEXT NOT NULL DEFAULT '',
            is_secret BOOLEAN NOT NULL DEFAULT FALSE,
            secret_timer INT,
            is_public BOOLEAN NOT NULL DEFAULT FALSE,
            channel_username TEXT,
            subscriber_count INT NOT NULL DEFAULT 0,
            owner_id BIGINT,
            allow_all_messages BOOLEAN NOT NULL DEFAULT FALSE,
            background_style TEXT NOT NULL DEFAULT '',
            is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
            created_by BIGINT NOT NULL,
            last_message_id BIGINT,
            last_message_time TIMESTAMPTZ,
            post_seq BIGINT NOT NULL DEFAULT 0,
            peer_low BIGINT,
            peer_high BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chats_channel_username_key
            ON chats (channel_username)
            WHERE chat_type = 'channel' AND is_public AND channel_username IS NOT NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chats_personal_pair_key
            ON chats (peer_low, peer_high)
            WHERE chat_type = 'personal';`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(chat_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS chat_participants_user_idx ON chat_participants (user_id);`,
	`CREATE TABLE IF NOT EXISTS chat_admins (
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            PRIMARY KEY(chat_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            message_type TEXT NOT NULL DEFAULT 'text',
            sticker_url TEXT,
            file_url TEXT,
            file_name TEXT,
            file_size BIGINT,
            is_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
            expires_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at DESC, id DESC);`,
	`CREATE INDEX IF NOT EXISTS messages_expires_idx ON messages (expires_at) WHERE expires_at IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS posts (
            id BIGSERIAL PRIMARY KEY,
            channel_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            author_id BIGINT NOT NULL,
            sequence_number BIGINT NOT NULL,
            text TEXT,
            media_url TEXT,
            media_type TEXT,
            post_type TEXT NOT NULL,
            views INT NOT NULL DEFAULT 0,
            comments_count INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(channel_id, sequence_number)
        );`,
	`CREATE TABLE IF NOT EXISTS post_reactions (
            post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            reaction_type TEXT NOT NULL,
            user_id BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(post_id, reaction_type, user_id)
        );`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}
