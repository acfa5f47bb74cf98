package filestore

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// SessionStore is the file-backed store.SessionStore implementation.
// Sessions live in a single sessions.json index; each session's
// conversation log is its own sessions/<name>/log.json file so large logs
// don't bloat the index that's rewritten on every metadata change.
type SessionStore struct {
	mu       sync.Mutex
	home     string
	sessions map[string]*store.Session
}

// NewSessionStore loads (or initializes) the session index at
// <home>/sessions.json.
func NewSessionStore(home string) (*SessionStore, error) {
	s := &SessionStore{home: home, sessions: make(map[string]*store.Session)}
	var list []store.Session
	if _, err := readJSON(s.indexPath(), &list); err != nil {
		return nil, err
	}
	for i := range list {
		sess := list[i]
		s.sessions[sess.Name] = &sess
	}
	return s, nil
}

func (s *SessionStore) indexPath() string { return filepath.Join(s.home, "sessions.json") }

func (s *SessionStore) logPath(name string) string {
	return filepath.Join(s.home, "sessions", sanitizeName(name), "log.json")
}

func (s *SessionStore) persistIndexLocked() error {
	list := make([]store.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, *sess)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return writeAtomic(s.indexPath(), list)
}

// CreateSession is idempotent on name: the first creator's Created
// timestamp is preserved (spec §3).
func (s *SessionStore) CreateSession(name string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[name]; ok {
		return existing, nil
	}
	sess := &store.Session{
		Name:    name,
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
	}
	s.sessions[name] = sess
	if err := s.persistIndexLocked(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) Get(name string) (*store.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		return nil, false
	}
	clone := *sess
	return &clone, true
}

func (s *SessionStore) SetProviderBinding(name string, binding *store.ProviderBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		return store.ErrSessionNotFound
	}
	sess.ProviderBinding = binding
	return s.persistIndexLocked()
}

func (s *SessionStore) SetContext(name, context string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		return store.ErrSessionNotFound
	}
	sess.Context = context
	return s.persistIndexLocked()
}

// DeleteSession removes the session, its provider binding, and its log,
// returning the final log for the session:destroy event (spec §3).
func (s *SessionStore) DeleteSession(name, reason string) ([]store.ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[name]; !ok {
		return nil, store.ErrSessionNotFound
	}
	var log []store.ConversationEntry
	readJSON(s.logPath(name), &log)

	delete(s.sessions, name)
	if err := s.persistIndexLocked(); err != nil {
		return nil, err
	}
	// Best-effort: clear the persisted log too.
	writeAtomic(s.logPath(name), []store.ConversationEntry{})
	return log, nil
}

func (s *SessionStore) List() []store.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]store.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, *sess)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// AppendEntry auto-creates the session if absent (spec §3).
func (s *SessionStore) AppendEntry(name string, entry store.ConversationEntry) error {
	s.mu.Lock()
	if _, ok := s.sessions[name]; !ok {
		s.sessions[name] = &store.Session{Name: name, ID: uuid.NewString(), Created: time.Now().UTC()}
		if err := s.persistIndexLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	// Log appends are per-session-file, serialized by the caller (the
	// dispatch engine processes one item at a time per session queue), so
	// no additional lock is required beyond read-modify-write here.
	var log []store.ConversationEntry
	if _, err := readJSON(s.logPath(name), &log); err != nil {
		return err
	}
	log = append(log, entry)
	return writeAtomic(s.logPath(name), log)
}

// ReadLog returns entries in ts order; tailLimit<=0 means all (spec §3).
func (s *SessionStore) ReadLog(name string, tailLimit int) ([]store.ConversationEntry, error) {
	var log []store.ConversationEntry
	if _, err := readJSON(s.logPath(name), &log); err != nil {
		return nil, err
	}
	if tailLimit > 0 && len(log) > tailLimit {
		log = log[len(log)-tailLimit:]
	}
	return log, nil
}

func sanitizeName(name string) string {
	replacer := func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		out = append(out, replacer(r))
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
