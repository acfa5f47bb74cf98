package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// SessionStore is the Postgres-backed store.SessionStore for managed-mode
// deployments where multiple daemon instances share state. Adapted from
// goclaw's internal/store/pg.PGSessionStore — same CRUD shape, generalized
// from its chat-history-cache design to WOPR's session/log split.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore { return &SessionStore{db: db} }

func (s *SessionStore) CreateSession(name string) (*store.Session, error) {
	ctx := context.Background()
	if existing, ok := s.Get(name); ok {
		return existing, nil
	}
	sess := &store.Session{Name: name, ID: uuid.NewString(), Created: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (name, id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING`,
		sess.Name, sess.ID, sess.Created,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if existing, ok := s.Get(name); ok {
		return existing, nil
	}
	return sess, nil
}

func (s *SessionStore) Get(name string) (*store.Session, bool) {
	ctx := context.Background()
	var sess store.Session
	var context_ sql.NullString
	var bindingJSON, channelJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT name, id, created_at, context, provider_binding, channel FROM sessions WHERE name = $1`, name,
	).Scan(&sess.Name, &sess.ID, &sess.Created, &context_, &bindingJSON, &channelJSON)
	if err != nil {
		return nil, false
	}
	sess.Context = context_.String
	if len(bindingJSON) > 0 {
		var binding store.ProviderBinding
		if json.Unmarshal(bindingJSON, &binding) == nil {
			sess.ProviderBinding = &binding
		}
	}
	if len(channelJSON) > 0 {
		var channel store.ChannelRef
		if json.Unmarshal(channelJSON, &channel) == nil {
			sess.Channel = &channel
		}
	}
	return &sess, true
}

func (s *SessionStore) SetProviderBinding(name string, binding *store.ProviderBinding) error {
	ctx := context.Background()
	var data []byte
	if binding != nil {
		var err error
		data, err = json.Marshal(binding)
		if err != nil {
			return fmt.Errorf("marshal provider binding: %w", err)
		}
	}
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET provider_binding = $1 WHERE name = $2", data, name)
	if err != nil {
		return fmt.Errorf("set provider binding: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

func (s *SessionStore) SetContext(name, contextValue string) error {
	ctx := context.Background()
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET context = $1 WHERE name = $2", contextValue, name)
	if err != nil {
		return fmt.Errorf("set context: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

func (s *SessionStore) DeleteSession(name, reason string) ([]store.ConversationEntry, error) {
	ctx := context.Background()
	log, err := s.ReadLog(name, 0)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE name = $1", name)
	if err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return nil, err
	}
	return log, nil
}

func (s *SessionStore) List() []store.Session {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx, "SELECT name, id, created_at, context FROM sessions ORDER BY name")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []store.Session
	for rows.Next() {
		var sess store.Session
		var context_ sql.NullString
		if err := rows.Scan(&sess.Name, &sess.ID, &sess.Created, &context_); err != nil {
			continue
		}
		sess.Context = context_.String
		out = append(out, sess)
	}
	return out
}

func (s *SessionStore) AppendEntry(name string, entry store.ConversationEntry) error {
	ctx := context.Background()
	if _, ok := s.Get(name); !ok {
		if _, err := s.CreateSession(name); err != nil {
			return err
		}
	}
	var channelJSON []byte
	if entry.Channel != nil {
		var err error
		channelJSON, err = json.Marshal(entry.Channel)
		if err != nil {
			return fmt.Errorf("marshal channel: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_entries
		 (session_name, ts, from_role, sender_id, content, entry_type, channel, finish_reason, prompt_tokens, completion_tokens, cost_usd)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		name, entry.Ts, entry.From, entry.SenderID, entry.Content, string(entry.Type), channelJSON,
		string(entry.FinishReason), entry.PromptTokens, entry.CompletionTokens, entry.CostUsd,
	)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (s *SessionStore) ReadLog(name string, tailLimit int) ([]store.ConversationEntry, error) {
	ctx := context.Background()
	query := `SELECT ts, from_role, sender_id, content, entry_type, channel, finish_reason, prompt_tokens, completion_tokens, cost_usd
	          FROM conversation_entries WHERE session_name = $1 ORDER BY ts`
	var rows *sql.Rows
	var err error
	if tailLimit > 0 {
		query = `SELECT ts, from_role, sender_id, content, entry_type, channel, finish_reason, prompt_tokens, completion_tokens, cost_usd
		         FROM (SELECT * FROM conversation_entries WHERE session_name = $1 ORDER BY ts DESC LIMIT $2) t ORDER BY ts`
		rows, err = s.db.QueryContext(ctx, query, name, tailLimit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	var out []store.ConversationEntry
	for rows.Next() {
		var entry store.ConversationEntry
		var senderID, finishReason sql.NullString
		var entryType string
		var channelJSON []byte
		if err := rows.Scan(&entry.Ts, &entry.From, &senderID, &entry.Content, &entryType, &channelJSON,
			&finishReason, &entry.PromptTokens, &entry.CompletionTokens, &entry.CostUsd); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.SenderID = senderID.String
		entry.Type = store.EntryType(entryType)
		entry.FinishReason = store.FinishReason(finishReason.String)
		if len(channelJSON) > 0 {
			var channel store.ChannelRef
			if json.Unmarshal(channelJSON, &channel) == nil {
				entry.Channel = &channel
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func rowsAffectedOrNotFound(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}
