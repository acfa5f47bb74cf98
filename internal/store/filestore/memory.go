package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// MemoryStore persists per-session markdown notes under
// sessions/<name>/memory/*.md (spec §6.4 names this layout literally).
type MemoryStore struct {
	mu   sync.Mutex
	home string
}

func NewMemoryStore(home string) *MemoryStore {
	return &MemoryStore{home: home}
}

func (s *MemoryStore) dir(session string) string {
	return filepath.Join(s.home, "sessions", sanitizeName(session), "memory")
}

func (s *MemoryStore) docPath(session, name string) string {
	return filepath.Join(s.dir(session), sanitizeName(name)+".md")
}

func (s *MemoryStore) Read(session, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.docPath(session, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (s *MemoryStore) Write(session, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomicBytes(s.docPath(session, name), []byte(content))
}

func (s *MemoryStore) List(session string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir(session))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names, nil
}

// Search does a naive case-insensitive substring scan across every
// document, returning the first matching line as a snippet.
func (s *MemoryStore) Search(session, query string) ([]store.MemoryMatch, error) {
	names, err := s.List(session)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var matches []store.MemoryMatch
	for _, name := range names {
		content, ok, err := s.Read(session, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if !ok {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, store.MemoryMatch{Name: name, Snippet: strings.TrimSpace(line)})
				break
			}
		}
	}
	return matches, nil
}
