package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wolfman30/medassist/internal/database"
)

// MessageStore persists chat exchanges. Results are ordered oldest first.
type MessageStore interface {
	Save(ctx context.Context, m *Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*Message, error)
	ListByEmail(ctx context.Context, email string) ([]*Message, error)
}

// PostgresMessageStore keeps messages in chat_messages.
type PostgresMessageStore struct {
	pool database.Querier
}

func NewPostgresMessageStore(pool database.Querier) *PostgresMessageStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresMessageStore{pool: pool}
}

func (s *PostgresMessageStore) Save(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO chat_messages (id, session_id, user_email, user_question, bot_response)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query, m.ID, m.SessionID, m.UserEmail, m.UserQuestion, m.BotResponse).Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("conversation: save message: %w", err)
	}
	return nil
}

func (s *PostgresMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_email, user_question, bot_response, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list session messages: %w", err)
	}
	return collectMessages(rows)
}

func (s *PostgresMessageStore) ListByEmail(ctx context.Context, email string) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_email, user_question, bot_response, created_at
		FROM chat_messages WHERE user_email = $1 ORDER BY created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("conversation: list user messages: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]*Message, error) {
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserEmail, &m.UserQuestion, &m.BotResponse, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: message rows: %w", err)
	}
	return out, nil
}

// InMemoryMessageStore is used in tests and when no database is configured.
type InMemoryMessageStore struct {
	mu       sync.RWMutex
	messages []*Message
	now      func() time.Time
}

func NewInMemoryMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{now: time.Now}
}

func (s *InMemoryMessageStore) Save(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	copied := *m
	s.mu.Lock()
	s.messages = append(s.messages, &copied)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*Message, error) {
	return s.filter(func(m *Message) bool { return m.SessionID == sessionID }), nil
}

func (s *InMemoryMessageStore) ListByEmail(ctx context.Context, email string) ([]*Message, error) {
	return s.filter(func(m *Message) bool { return m.UserEmail == email }), nil
}

func (s *InMemoryMessageStore) filter(keep func(*Message) bool) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Message
	for _, m := range s.messages {
		if keep(m) {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
