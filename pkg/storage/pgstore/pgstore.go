// Package pgstore is the Postgres-backed implementation of
// conversation.Store, grounded in pkg/database's client construction
// conventions (NewClient/LoadConfigFromEnv/Close) but using pgx/v5
// directly against a hand-written schema (pkg/database/migrations)
// rather than an ent-generated client — see DESIGN.md.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a conversation.Store backed by a pgxpool.Pool. Per-conversation
// writes still go through conversation.LockRegistry: Postgres's own
// transactional guarantees protect individual statements, but the
// read-modify-write message-append pattern used by AddUserMessage and
// friends needs the same single-writer serialization the store port
// requires of every backend.
type Store struct {
	pool  *pgxpool.Pool
	locks *conversation.LockRegistry
}

var _ conversation.Store = (*Store)(nil)

// New wraps an already-connected, already-migrated pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, locks: conversation.NewLockRegistry()}
}

func (s *Store) Create(ctx context.Context, id string) (*conversation.Conversation, error) {
	conv := &conversation.Conversation{ID: id, CreatedAt: time.Now().UTC(), Title: conversation.DefaultTitle}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, created_at, title) VALUES ($1, $2, $3)`,
		conv.ID, conv.CreatedAt, conv.Title)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.get(ctx, s.pool, id)
}

func (s *Store) get(ctx context.Context, q queryer, id string) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	err := q.QueryRow(ctx, `SELECT id, created_at, title FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.CreatedAt, &conv.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT role, content, status, created_at, status_updated_at, stage1, stage2, stage3
		 FROM messages WHERE conversation_id = $1 ORDER BY ord ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m                         conversation.Message
			content, status           *string
			createdAt, statusUpdated  *time.Time
			stage1, stage2, stage3raw []byte
		)
		if err := rows.Scan(&m.Role, &content, &status, &createdAt, &statusUpdated, &stage1, &stage2, &stage3raw); err != nil {
			return nil, err
		}
		if content != nil {
			m.Content = *content
		}
		if status != nil {
			m.Status = conversation.UserMessageStatus(*status)
		}
		if createdAt != nil {
			m.CreatedAt = *createdAt
		}
		if statusUpdated != nil {
			m.StatusUpdatedAt = *statusUpdated
		}
		if len(stage1) > 0 {
			if err := json.Unmarshal(stage1, &m.Stage1); err != nil {
				return nil, err
			}
		}
		if len(stage2) > 0 {
			if err := json.Unmarshal(stage2, &m.Stage2); err != nil {
				return nil, err
			}
		}
		if len(stage3raw) > 0 {
			if err := json.Unmarshal(stage3raw, &m.Stage3); err != nil {
				return nil, err
			}
		}
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &conv, nil
}

// Save overwrites a conversation's title and message list wholesale,
// matching jsonstore.Save's whole-document-replace semantics.
func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO conversations (id, created_at, title) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
		conv.ID, conv.CreatedAt, conv.Title); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conv.ID); err != nil {
		return err
	}
	for i, m := range conv.Messages {
		if err := insertMessage(ctx, tx, conv.ID, i, m); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, q queryer, convID string, ord int, m conversation.Message) error {
	stage1, err := json.Marshal(m.Stage1)
	if err != nil {
		return err
	}
	stage2, err := json.Marshal(m.Stage2)
	if err != nil {
		return err
	}
	stage3, err := json.Marshal(m.Stage3)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO messages (conversation_id, ord, role, content, status, created_at, status_updated_at, stage1, stage2, stage3)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		convID, ord, m.Role, nullableString(m.Content), nullableStatus(m.Status),
		nullableTime(m.CreatedAt), nullableTime(m.StatusUpdatedAt), stage1, stage2, stage3)
	return err
}

func (s *Store) List(ctx context.Context) ([]conversation.Metadata, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.created_at, c.title,
		       COUNT(*) FILTER (
		           WHERE (m.role = 'user' AND (m.status = 'complete' OR m.status IS NULL))
		              OR (m.role = 'assistant' AND m.stage3->>'response' IS NOT NULL AND m.stage3->>'response' != ''
		                  AND COALESCE((m.stage3->'metadata'->>'summarized_count')::int, 0) = 0)
		       ) AS message_count
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id, c.created_at, c.title
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conversation.Metadata
	for rows.Next() {
		var md conversation.Metadata
		if err := rows.Scan(&md.ID, &md.CreatedAt, &md.Title, &md.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

func (s *Store) AddUserMessage(ctx context.Context, id, content string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.withTx(ctx, func(tx pgx.Tx) error {
		conv, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		return insertMessage(ctx, tx, id, len(conv.Messages), conversation.Message{
			Role: conversation.RoleUser, Content: content,
			Status: conversation.StatusPending, CreatedAt: now, StatusUpdatedAt: now,
		})
	})
}

func (s *Store) MarkLastUserMessageStatus(ctx context.Context, id string, status conversation.UserMessageStatus) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var found bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var ord int
		err := tx.QueryRow(ctx,
			`SELECT ord FROM messages WHERE conversation_id = $1 AND role = 'user' ORDER BY ord DESC LIMIT 1`, id).
			Scan(&ord)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		_, err = tx.Exec(ctx,
			`UPDATE messages SET status = $1, status_updated_at = $2 WHERE conversation_id = $3 AND ord = $4`,
			string(status), time.Now().UTC(), id, ord)
		return err
	})
	return found, err
}

func (s *Store) RemovePendingUserMessages(ctx context.Context, id string, keepLast bool) (int, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var removed int
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT ord FROM messages WHERE conversation_id = $1 AND role = 'user' AND status = 'pending' ORDER BY ord ASC`, id)
		if err != nil {
			return err
		}
		var pendingOrds []int
		for rows.Next() {
			var ord int
			if err := rows.Scan(&ord); err != nil {
				rows.Close()
				return err
			}
			pendingOrds = append(pendingOrds, ord)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		toRemove := pendingOrds
		if keepLast && len(pendingOrds) > 0 {
			toRemove = pendingOrds[:len(pendingOrds)-1]
		}
		for _, ord := range toRemove {
			if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1 AND ord = $2`, id, ord); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *Store) GetLastUserMessage(ctx context.Context, id string) (*conversation.Message, error) {
	conv, err := s.get(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	msg := conv.LastUserMessage()
	if msg == nil {
		return nil, conversation.ErrNoSuchUser
	}
	return msg, nil
}

func (s *Store) AddAssistantMessage(ctx context.Context, id string, stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking, stage3 conversation.ChairmanAnswer) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.withTx(ctx, func(tx pgx.Tx) error {
		conv, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		return insertMessage(ctx, tx, id, len(conv.Messages), conversation.Message{
			Role: conversation.RoleAssistant, Stage1: stage1, Stage2: stage2, Stage3: stage3,
		})
	})
}

func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	tag, err := s.pool.Exec(ctx, `UPDATE conversations SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

// queryer is the subset of pgx.Tx/pgxpool.Pool this package needs,
// letting get/insertMessage run against either a bare pool connection or
// an in-flight transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableStatus(s conversation.UserMessageStatus) *string {
	if s == "" {
		return nil
	}
	v := string(s)
	return &v
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
