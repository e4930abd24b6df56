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

// ThreadInfo computes the reply aggregate for one parent message:
// reply count, timestamp of the newest reply, and the distinct reply
// authors in first-reply order. Derived from the reply rows on every
// call rather than maintained incrementally, so deleting a reply can
// never leave a stale count behind.
func (s *Store) ThreadInfo(ctx context.Context, parent schema.MessageID) (schema.ThreadInfo, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return schema.ThreadInfo{}, err
	}
	defer s.pool.Put(conn)

	var info schema.ThreadInfo
	seen := make(map[schema.UserID]bool)
	err = sqlitex.Execute(conn, `
		SELECT author_id, created_at FROM message
		WHERE parent_id = ?
		ORDER BY created_at, id
	`, &sqlitex.ExecOptions{
		Args: []any{string(parent)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			info.ReplyCount++
			author := schema.UserID(stmt.ColumnText(0))
			if !seen[author] {
				seen[author] = true
				info.Participants = append(info.Participants, author)
			}
			if at := fromMillis(stmt.ColumnInt64(1)); at.After(info.LastReplyAt) {
				info.LastReplyAt = at
			}
			return nil
		},
	})
	if err != nil {
		return schema.ThreadInfo{}, fmt.Errorf("store: computing thread info: %w", err)
	}
	return info, nil
}
