// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/lib/sqlitepool"
)

// Store is the SQLite-backed persistence layer. Safe for concurrent
// use; every operation borrows its own pooled connection.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. Use ":memory:" with PoolSize
	// 1 in tests.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides the current time for row timestamps. Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// databaseSchema is applied to every pooled connection. CREATE IF NOT
// EXISTS makes it idempotent across connections and restarts.
const databaseSchema = `
CREATE TABLE IF NOT EXISTS typing_status (
	user_id    TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, channel_id)
);
CREATE INDEX IF NOT EXISTS typing_status_channel ON typing_status (channel_id, updated_at);

CREATE TABLE IF NOT EXISTS babble_participant (
	user_id   TEXT PRIMARY KEY,
	team_id   TEXT NOT NULL,
	joined_at INTEGER NOT NULL,
	seen_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS babble_participant_team ON babble_participant (team_id);

CREATE TABLE IF NOT EXISTS signal_mailbox (
	id           TEXT PRIMARY KEY,
	sender_id    TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	kind         TEXT NOT NULL,
	payload      BLOB,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS signal_mailbox_recipient ON signal_mailbox (recipient_id, created_at);

CREATE TABLE IF NOT EXISTS team_member (
	team_id      TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS channel (
	id       TEXT PRIMARY KEY,
	team_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS channel_team ON channel (team_id, position);

CREATE TABLE IF NOT EXISTS channel_mute (
	user_id    TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	PRIMARY KEY (user_id, channel_id)
);
CREATE INDEX IF NOT EXISTS channel_mute_channel ON channel_mute (channel_id);

CREATE TABLE IF NOT EXISTS message (
	id               TEXT PRIMARY KEY,
	channel_id       TEXT NOT NULL,
	author_id        TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	parent_id        TEXT NOT NULL DEFAULT '',
	attachment_count INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	edited_at        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS message_channel ON message (channel_id, created_at);
CREATE INDEX IF NOT EXISTS message_parent ON message (parent_id);

CREATE TABLE IF NOT EXISTS reaction (
	message_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	emoji      TEXT NOT NULL,
	PRIMARY KEY (message_id, user_id, emoji)
);
`

// Open creates a store backed by the SQLite file at cfg.Path,
// creating the schema on first use. The caller must Close it.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("store: Clock is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, databaseSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// toMillis converts a time to the stored integer representation.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts a stored timestamp back to UTC time. Zero
// stays the zero time, so omitted edited_at round-trips as unset.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
