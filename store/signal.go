// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/schema"
)

// InsertSignal appends a signal to the recipient's mailbox, enforcing
// co-presence: sender and recipient must both be participants of the
// same babble room at the moment of the write. The membership check
// and the insert share one IMMEDIATE transaction, so a concurrent
// leave cannot slip between them. The sender's seen_at is refreshed
// in the same transaction.
//
// Returns the stored signal with its generated ID, or a
// precondition_failed error when co-presence does not hold.
func (s *Store) InsertSignal(ctx context.Context, sender, recipient schema.UserID, kind schema.SignalKind, payload codec.RawMessage) (_ *schema.Signal, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("store: beginning signal transaction: %w", err)
	}
	defer endFn(&err)

	senderRow, err := getParticipant(conn, sender)
	if err != nil {
		return nil, err
	}
	if senderRow == nil {
		return nil, schema.PreconditionFailed("sender %s is not in a babble room", sender)
	}
	recipientRow, err := getParticipant(conn, recipient)
	if err != nil {
		return nil, err
	}
	if recipientRow == nil || recipientRow.Team != senderRow.Team {
		return nil, schema.PreconditionFailed("recipient %s is not in %s's babble room", recipient, sender)
	}

	now := s.clock.Now()
	id, err := deriveID(signalIDPrefix, "babble.signal", toMillis(now), string(sender), string(recipient), string(kind))
	if err != nil {
		return nil, err
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO signal_mailbox (id, sender_id, recipient_id, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, &sqlitex.ExecOptions{
		Args: []any{id, string(sender), string(recipient), string(kind), []byte(payload), toMillis(now)},
	})
	if err != nil {
		return nil, fmt.Errorf("store: inserting signal: %w", err)
	}

	err = sqlitex.Execute(conn,
		"UPDATE babble_participant SET seen_at = ? WHERE user_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{toMillis(now), string(sender)},
		})
	if err != nil {
		return nil, fmt.Errorf("store: touching sender: %w", err)
	}

	return &schema.Signal{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now.UTC(),
	}, nil
}

// ListSignalsFor returns recipient's mailbox rows created strictly
// after cutoff, oldest first. The read is non-destructive: rows stay
// until the recipient deletes them or the sweep purges them, so a
// poll that crashes mid-processing loses nothing.
func (s *Store) ListSignalsFor(ctx context.Context, recipient schema.UserID, cutoff time.Time) ([]schema.Signal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var signals []schema.Signal
	err = sqlitex.Execute(conn, `
		SELECT id, sender_id, kind, payload, created_at FROM signal_mailbox
		WHERE recipient_id = ? AND created_at > ?
		ORDER BY created_at, id
	`, &sqlitex.ExecOptions{
		Args: []any{string(recipient), toMillis(cutoff)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			payload := make([]byte, stmt.ColumnLen(3))
			stmt.ColumnBytes(3, payload)
			signals = append(signals, schema.Signal{
				ID:        stmt.ColumnText(0),
				Sender:    schema.UserID(stmt.ColumnText(1)),
				Recipient: recipient,
				Kind:      schema.SignalKind(stmt.ColumnText(2)),
				Payload:   payload,
				CreatedAt: fromMillis(stmt.ColumnInt64(4)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing signals: %w", err)
	}
	return signals, nil
}

// GetSignal returns the signal with the given ID, or nil if absent.
func (s *Store) GetSignal(ctx context.Context, id string) (*schema.Signal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var signal *schema.Signal
	err = sqlitex.Execute(conn, `
		SELECT sender_id, recipient_id, kind, payload, created_at
		FROM signal_mailbox WHERE id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			payload := make([]byte, stmt.ColumnLen(3))
			stmt.ColumnBytes(3, payload)
			signal = &schema.Signal{
				ID:        id,
				Sender:    schema.UserID(stmt.ColumnText(0)),
				Recipient: schema.UserID(stmt.ColumnText(1)),
				Kind:      schema.SignalKind(stmt.ColumnText(2)),
				Payload:   payload,
				CreatedAt: fromMillis(stmt.ColumnInt64(4)),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: getting signal: %w", err)
	}
	return signal, nil
}

// DeleteSignal removes the signal with the given ID. Deleting an
// absent ID is a no-op, so consume-then-delete retries are safe.
func (s *Store) DeleteSignal(ctx context.Context, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM signal_mailbox WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
		})
	if err != nil {
		return fmt.Errorf("store: deleting signal: %w", err)
	}
	return nil
}

// PurgeSignalsBefore deletes signals created at or before cutoff,
// returning the number removed. Undeleted signals past the retention
// window are stale by definition: ICE negotiation either completed or
// failed long ago.
func (s *Store) PurgeSignalsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"DELETE FROM signal_mailbox WHERE created_at <= ?",
		&sqlitex.ExecOptions{
			Args: []any{toMillis(cutoff)},
		})
	if err != nil {
		return 0, fmt.Errorf("store: purging signals: %w", err)
	}
	return conn.Changes(), nil
}
