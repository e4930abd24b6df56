// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/babble-foundation/babble/schema"
)

// UpsertTyping records that user is typing in channel as of now.
// Repeated calls refresh the timestamp in place; there is never more
// than one row per (user, channel).
func (s *Store) UpsertTyping(ctx context.Context, user schema.UserID, channel schema.ChannelID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO typing_status (user_id, channel_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET updated_at = excluded.updated_at
	`, &sqlitex.ExecOptions{
		Args: []any{string(user), string(channel), toMillis(s.clock.Now())},
	})
	if err != nil {
		return fmt.Errorf("store: upserting typing status: %w", err)
	}
	return nil
}

// DeleteTyping removes user's typing row for channel. Deleting an
// absent row is a no-op.
func (s *Store) DeleteTyping(ctx context.Context, user schema.UserID, channel schema.ChannelID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM typing_status WHERE user_id = ? AND channel_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(user), string(channel)},
		})
	if err != nil {
		return fmt.Errorf("store: deleting typing status: %w", err)
	}
	return nil
}

// ListTypingSince returns the typing rows for channel updated
// strictly after cutoff, excluding the given user (a client never
// shows its own indicator). Rows older than the cutoff are invisible
// even if the sweep has not removed them yet.
func (s *Store) ListTypingSince(ctx context.Context, channel schema.ChannelID, cutoff time.Time, exclude schema.UserID) ([]schema.TypingStatus, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var rows []schema.TypingStatus
	err = sqlitex.Execute(conn, `
		SELECT user_id, updated_at FROM typing_status
		WHERE channel_id = ? AND updated_at > ? AND user_id != ?
		ORDER BY user_id
	`, &sqlitex.ExecOptions{
		Args: []any{string(channel), toMillis(cutoff), string(exclude)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, schema.TypingStatus{
				User:      schema.UserID(stmt.ColumnText(0)),
				Channel:   channel,
				UpdatedAt: fromMillis(stmt.ColumnInt64(1)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing typing status: %w", err)
	}
	return rows, nil
}

// PurgeTypingBefore deletes typing rows with updated_at at or before
// cutoff, returning the number removed. Run by the periodic sweep;
// reads already filter by cutoff, so this only reclaims space.
func (s *Store) PurgeTypingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM typing_status WHERE updated_at <= ?",
		&sqlitex.ExecOptions{
			Args: []any{toMillis(cutoff)},
		})
	if err != nil {
		return 0, fmt.Errorf("store: purging typing status: %w", err)
	}
	return conn.Changes(), nil
}

// UpsertParticipant records user as a participant in team's babble
// room. The user_id primary key makes the swap implicit: joining a
// second room replaces the row, so a user is never in two rooms.
func (s *Store) UpsertParticipant(ctx context.Context, user schema.UserID, team schema.TeamID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	now := toMillis(s.clock.Now())
	err = sqlitex.Execute(conn, `
		INSERT OR REPLACE INTO babble_participant (user_id, team_id, joined_at, seen_at)
		VALUES (?, ?, ?, ?)
	`, &sqlitex.ExecOptions{
		Args: []any{string(user), string(team), now, now},
	})
	if err != nil {
		return fmt.Errorf("store: upserting participant: %w", err)
	}
	return nil
}

// DeleteParticipant removes user from whichever babble room they are
// in. A no-op if they are in none.
func (s *Store) DeleteParticipant(ctx context.Context, user schema.UserID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM babble_participant WHERE user_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(user)},
		})
	if err != nil {
		return fmt.Errorf("store: deleting participant: %w", err)
	}
	return nil
}

// GetParticipant returns user's participant row, or nil if the user
// is not in any babble room.
func (s *Store) GetParticipant(ctx context.Context, user schema.UserID) (*schema.Participant, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	return getParticipant(conn, user)
}

func getParticipant(conn *sqlite.Conn, user schema.UserID) (*schema.Participant, error) {
	var participant *schema.Participant
	err := sqlitex.Execute(conn, `
		SELECT team_id, joined_at, seen_at FROM babble_participant WHERE user_id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{string(user)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			participant = &schema.Participant{
				User:     user,
				Team:     schema.TeamID(stmt.ColumnText(0)),
				JoinedAt: fromMillis(stmt.ColumnInt64(1)),
				SeenAt:   fromMillis(stmt.ColumnInt64(2)),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: getting participant: %w", err)
	}
	return participant, nil
}

// ListParticipants returns the participants of team's babble room,
// ordered by join time.
func (s *Store) ListParticipants(ctx context.Context, team schema.TeamID) ([]schema.Participant, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var participants []schema.Participant
	err = sqlitex.Execute(conn, `
		SELECT user_id, joined_at, seen_at FROM babble_participant
		WHERE team_id = ?
		ORDER BY joined_at, user_id
	`, &sqlitex.ExecOptions{
		Args: []any{string(team)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			participants = append(participants, schema.Participant{
				User:     schema.UserID(stmt.ColumnText(0)),
				Team:     team,
				JoinedAt: fromMillis(stmt.ColumnInt64(1)),
				SeenAt:   fromMillis(stmt.ColumnInt64(2)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing participants: %w", err)
	}
	return participants, nil
}

// TouchParticipant refreshes user's seen_at to now. Called on every
// relay interaction so the liveness sweep can tell active
// participants from abandoned rows.
func (s *Store) TouchParticipant(ctx context.Context, user schema.UserID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE babble_participant SET seen_at = ? WHERE user_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{toMillis(s.clock.Now()), string(user)},
		})
	if err != nil {
		return fmt.Errorf("store: touching participant: %w", err)
	}
	return nil
}

// PurgeParticipantsIdleBefore deletes participants whose seen_at is
// at or before cutoff, returning the number removed. Catches clients
// that crashed without leaving.
func (s *Store) PurgeParticipantsIdleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM babble_participant WHERE seen_at <= ?",
		&sqlitex.ExecOptions{
			Args: []any{toMillis(cutoff)},
		})
	if err != nil {
		return 0, fmt.Errorf("store: purging idle participants: %w", err)
	}
	return conn.Changes(), nil
}
