// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/babble-foundation/babble/schema"
)

// TeamMember is one row of a team's roster. DisplayName is what push
// notifications show as the sender.
type TeamMember struct {
	Team        schema.TeamID `cbor:"team"`
	User        schema.UserID `cbor:"user"`
	DisplayName string        `cbor:"display_name"`
}

// Channel is one text channel row. Position orders the sidebar.
type Channel struct {
	ID       schema.ChannelID `cbor:"id"`
	Team     schema.TeamID    `cbor:"team"`
	Name     string           `cbor:"name"`
	Position int              `cbor:"position"`
}

// PutTeamMember adds or updates a user on a team's roster.
func (s *Store) PutTeamMember(ctx context.Context, member TeamMember) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO team_member (team_id, user_id, display_name)
		VALUES (?, ?, ?)
		ON CONFLICT (team_id, user_id) DO UPDATE SET display_name = excluded.display_name
	`, &sqlitex.ExecOptions{
		Args: []any{string(member.Team), string(member.User), member.DisplayName},
	})
	if err != nil {
		return fmt.Errorf("store: putting team member: %w", err)
	}
	return nil
}

// ListTeamMembers returns the roster of a team, ordered by user ID.
func (s *Store) ListTeamMembers(ctx context.Context, team schema.TeamID) ([]TeamMember, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var members []TeamMember
	err = sqlitex.Execute(conn, `
		SELECT user_id, display_name FROM team_member
		WHERE team_id = ? ORDER BY user_id
	`, &sqlitex.ExecOptions{
		Args: []any{string(team)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			members = append(members, TeamMember{
				Team:        team,
				User:        schema.UserID(stmt.ColumnText(0)),
				DisplayName: stmt.ColumnText(1),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing team members: %w", err)
	}
	return members, nil
}

// GetTeamMember returns the roster row for user on team, or nil.
func (s *Store) GetTeamMember(ctx context.Context, team schema.TeamID, user schema.UserID) (*TeamMember, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var member *TeamMember
	err = sqlitex.Execute(conn, `
		SELECT display_name FROM team_member WHERE team_id = ? AND user_id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{string(team), string(user)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			member = &TeamMember{
				Team:        team,
				User:        user,
				DisplayName: stmt.ColumnText(0),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: getting team member: %w", err)
	}
	return member, nil
}

// PutChannel creates or updates a channel.
func (s *Store) PutChannel(ctx context.Context, channel Channel) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO channel (id, team_id, name, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			team_id = excluded.team_id,
			name = excluded.name,
			position = excluded.position
	`, &sqlitex.ExecOptions{
		Args: []any{string(channel.ID), string(channel.Team), channel.Name, channel.Position},
	})
	if err != nil {
		return fmt.Errorf("store: putting channel: %w", err)
	}
	return nil
}

// GetChannel returns the channel with the given ID, or nil.
func (s *Store) GetChannel(ctx context.Context, id schema.ChannelID) (*Channel, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var channel *Channel
	err = sqlitex.Execute(conn, `
		SELECT team_id, name, position FROM channel WHERE id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{string(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			channel = &Channel{
				ID:       id,
				Team:     schema.TeamID(stmt.ColumnText(0)),
				Name:     stmt.ColumnText(1),
				Position: int(stmt.ColumnInt64(2)),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: getting channel: %w", err)
	}
	return channel, nil
}

// ListChannels returns a team's channels ordered by sidebar position.
func (s *Store) ListChannels(ctx context.Context, team schema.TeamID) ([]Channel, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var channels []Channel
	err = sqlitex.Execute(conn, `
		SELECT id, name, position FROM channel
		WHERE team_id = ? ORDER BY position, id
	`, &sqlitex.ExecOptions{
		Args: []any{string(team)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			channels = append(channels, Channel{
				ID:       schema.ChannelID(stmt.ColumnText(0)),
				Team:     team,
				Name:     stmt.ColumnText(1),
				Position: int(stmt.ColumnInt64(2)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing channels: %w", err)
	}
	return channels, nil
}

// SetChannelMuted records or clears user's mute on channel. Both
// directions are idempotent.
func (s *Store) SetChannelMuted(ctx context.Context, user schema.UserID, channel schema.ChannelID, muted bool) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if muted {
		err = sqlitex.Execute(conn, `
			INSERT OR IGNORE INTO channel_mute (user_id, channel_id) VALUES (?, ?)
		`, &sqlitex.ExecOptions{
			Args: []any{string(user), string(channel)},
		})
	} else {
		err = sqlitex.Execute(conn,
			"DELETE FROM channel_mute WHERE user_id = ? AND channel_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{string(user), string(channel)},
			})
	}
	if err != nil {
		return fmt.Errorf("store: setting channel mute: %w", err)
	}
	return nil
}

// ListChannelMuters returns the users who muted channel.
func (s *Store) ListChannelMuters(ctx context.Context, channel schema.ChannelID) ([]schema.UserID, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var users []schema.UserID
	err = sqlitex.Execute(conn, `
		SELECT user_id FROM channel_mute WHERE channel_id = ? ORDER BY user_id
	`, &sqlitex.ExecOptions{
		Args: []any{string(channel)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			users = append(users, schema.UserID(stmt.ColumnText(0)))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing channel muters: %w", err)
	}
	return users, nil
}

// InsertMessage stores a new message, generating its ID and stamping
// CreatedAt. The ParentID, if set, must reference an existing message
// in the same channel; replies to replies are flattened by the caller
// before they get here.
func (s *Store) InsertMessage(ctx context.Context, msg schema.Message) (*schema.Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	now := s.clock.Now()
	id, err := deriveID(messageIDPrefix, "babble.message", toMillis(now),
		string(msg.Channel), string(msg.Author), msg.Content)
	if err != nil {
		return nil, err
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO message (id, channel_id, author_id, content, parent_id, attachment_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, &sqlitex.ExecOptions{
		Args: []any{
			id, string(msg.Channel), string(msg.Author), msg.Content,
			string(msg.ParentID), msg.AttachmentCount, toMillis(now),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: inserting message: %w", err)
	}

	stored := msg
	stored.ID = schema.MessageID(id)
	stored.CreatedAt = now.UTC()
	stored.Pending = false
	return &stored, nil
}

// GetMessage returns the message with the given ID, or nil.
func (s *Store) GetMessage(ctx context.Context, id schema.MessageID) (*schema.Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var msg *schema.Message
	err = sqlitex.Execute(conn, `
		SELECT channel_id, author_id, content, parent_id, attachment_count, created_at, edited_at
		FROM message WHERE id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{string(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			msg = &schema.Message{
				ID:              id,
				Channel:         schema.ChannelID(stmt.ColumnText(0)),
				Author:          schema.UserID(stmt.ColumnText(1)),
				Content:         stmt.ColumnText(2),
				ParentID:        schema.MessageID(stmt.ColumnText(3)),
				AttachmentCount: int(stmt.ColumnInt64(4)),
				CreatedAt:       fromMillis(stmt.ColumnInt64(5)),
				EditedAt:        fromMillis(stmt.ColumnInt64(6)),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: getting message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a channel's messages oldest first, capped at
// limit (zero means no cap).
func (s *Store) ListMessages(ctx context.Context, channel schema.ChannelID, limit int) ([]schema.Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	query := `
		SELECT id, author_id, content, parent_id, attachment_count, created_at, edited_at
		FROM message WHERE channel_id = ?
		ORDER BY created_at, id
	`
	args := []any{string(channel)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var messages []schema.Message
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			messages = append(messages, schema.Message{
				ID:              schema.MessageID(stmt.ColumnText(0)),
				Channel:         channel,
				Author:          schema.UserID(stmt.ColumnText(1)),
				Content:         stmt.ColumnText(2),
				ParentID:        schema.MessageID(stmt.ColumnText(3)),
				AttachmentCount: int(stmt.ColumnInt64(4)),
				CreatedAt:       fromMillis(stmt.ColumnInt64(5)),
				EditedAt:        fromMillis(stmt.ColumnInt64(6)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing messages: %w", err)
	}
	return messages, nil
}

// EditMessage replaces a message's content and stamps edited_at.
// Editing an absent message is an error, not an upsert.
func (s *Store) EditMessage(ctx context.Context, id schema.MessageID, content string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE message SET content = ?, edited_at = ? WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{content, toMillis(s.clock.Now()), string(id)},
		})
	if err != nil {
		return fmt.Errorf("store: editing message: %w", err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: editing message: %s not found", id)
	}
	return nil
}

// DeleteMessage removes a message and its reactions in one
// transaction. Replies survive as orphans of a deleted parent; the
// thread aggregate is recomputed on read, so it shrinks accordingly.
func (s *Store) DeleteMessage(ctx context.Context, id schema.MessageID) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: beginning delete transaction: %w", err)
	}
	defer endFn(&err)

	err = sqlitex.Execute(conn,
		"DELETE FROM reaction WHERE message_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
		})
	if err != nil {
		return fmt.Errorf("store: deleting reactions: %w", err)
	}

	err = sqlitex.Execute(conn,
		"DELETE FROM message WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
		})
	if err != nil {
		return fmt.Errorf("store: deleting message: %w", err)
	}
	return nil
}

// AddReaction records an emoji reaction. Reacting twice with the same
// emoji is a no-op.
func (s *Store) AddReaction(ctx context.Context, reaction schema.Reaction) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT OR IGNORE INTO reaction (message_id, user_id, emoji) VALUES (?, ?, ?)
	`, &sqlitex.ExecOptions{
		Args: []any{string(reaction.MessageID), string(reaction.User), reaction.Emoji},
	})
	if err != nil {
		return fmt.Errorf("store: adding reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes an emoji reaction. A no-op if absent.
func (s *Store) RemoveReaction(ctx context.Context, reaction schema.Reaction) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM reaction WHERE message_id = ? AND user_id = ? AND emoji = ?",
		&sqlitex.ExecOptions{
			Args: []any{string(reaction.MessageID), string(reaction.User), reaction.Emoji},
		})
	if err != nil {
		return fmt.Errorf("store: removing reaction: %w", err)
	}
	return nil
}

// ListReactions returns the reactions on a message.
func (s *Store) ListReactions(ctx context.Context, id schema.MessageID) ([]schema.Reaction, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var reactions []schema.Reaction
	err = sqlitex.Execute(conn, `
		SELECT user_id, emoji FROM reaction
		WHERE message_id = ? ORDER BY user_id, emoji
	`, &sqlitex.ExecOptions{
		Args: []any{string(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			reactions = append(reactions, schema.Reaction{
				MessageID: id,
				User:      schema.UserID(stmt.ColumnText(0)),
				Emoji:     stmt.ColumnText(1),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing reactions: %w", err)
	}
	return reactions, nil
}
