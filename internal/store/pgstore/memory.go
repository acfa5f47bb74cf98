package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// MemoryStore is the Postgres-backed store.MemoryStore for managed-mode
// deployments, backing the same `sessions/<name>/memory/*.md` documents
// filestore.MemoryStore keeps on disk for single-instance deployments.
type MemoryStore struct {
	db *sql.DB
}

func NewMemoryStore(db *sql.DB) *MemoryStore { return &MemoryStore{db: db} }

func (s *MemoryStore) Read(session, name string) (string, bool, error) {
	ctx := context.Background()
	var content string
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM memory_documents WHERE session_name = $1 AND name = $2", session, name,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read memory document: %w", err)
	}
	return content, true, nil
}

func (s *MemoryStore) Write(session, name, content string) error {
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_documents (session_name, name, content, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_name, name) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		session, name, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write memory document: %w", err)
	}
	return nil
}

func (s *MemoryStore) List(session string) ([]string, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM memory_documents WHERE session_name = $1", session)
	if err != nil {
		return nil, fmt.Errorf("list memory documents: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan memory document name: %w", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, rows.Err()
}

func (s *MemoryStore) Search(session, query string) ([]store.MemoryMatch, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, content FROM memory_documents WHERE session_name = $1 AND content ILIKE $2",
		session, "%"+query+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search memory documents: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(query)
	var matches []store.MemoryMatch
	for rows.Next() {
		var name, content string
		if err := rows.Scan(&name, &content); err != nil {
			return nil, fmt.Errorf("scan memory document: %w", err)
		}
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, store.MemoryMatch{Name: name, Snippet: strings.TrimSpace(line)})
				break
			}
		}
	}
	return matches, rows.Err()
}
