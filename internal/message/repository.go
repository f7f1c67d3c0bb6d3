package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists the room log in an append-only messages table. A
// BIGSERIAL seq column is the ordering authority; each row is written in a
// single statement so readers never observe partial documents.
type PostgresStore struct {
	db        *sql.DB
	broadcast string
}

func NewPostgresStore(db *sql.DB, broadcast string) *PostgresStore {
	return &PostgresStore{db: db, broadcast: broadcast}
}

func (s *PostgresStore) Append(ctx context.Context, m Message, at time.Time) (Message, error) {
	m.ID = uuid.New()
	m.Time = at.Format(TimeLayout)

	query := `INSERT INTO messages (id, sender, recipient, body, kind, sent_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, m.ID, m.From, m.To, m.Text, m.Kind, m.Time); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) QueryFor(ctx context.Context, name string, limit int) ([]Message, error) {
	query := `
		SELECT id, sender, recipient, body, kind, sent_at
		FROM messages
		WHERE sender = $1 OR recipient = $1 OR recipient = $2
	`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		// Most recent N, fetched newest-first then flipped back to
		// chronological order below.
		rows, err = s.db.QueryContext(ctx, query+` ORDER BY seq DESC LIMIT $3`, name, s.broadcast, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query+` ORDER BY seq ASC`, name, s.broadcast)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages for %q: %w", name, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var sentAt string
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Text, &m.Kind, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Time = strings.TrimSpace(sentAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query messages for %q: %w", name, err)
	}

	if limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

func (s *PostgresStore) DeleteOwn(ctx context.Context, id uuid.UUID, requester string) error {
	var sender string
	err := s.db.QueryRowContext(ctx, `SELECT sender FROM messages WHERE id = $1`, id).Scan(&sender)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	if sender != requester {
		return ErrForbidden
	}

	// Sender re-checked in the delete itself; a concurrent delete surfaces as
	// NotFound rather than silently succeeding twice.
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1 AND sender = $2`, id, requester)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
