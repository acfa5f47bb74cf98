package filestore

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

func TestSessionStore_CreateSessionIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.CreateSession("alice")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := s.CreateSession("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created.Equal(second.Created) {
		t.Errorf("Created timestamp changed across idempotent create: %v != %v", first.Created, second.Created)
	}
	if first.ID != second.ID {
		t.Errorf("ID changed across idempotent create")
	}
}

func TestSessionStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateSession("bob"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Get("bob"); !ok {
		t.Fatal("expected session bob to survive reload")
	}
}

func TestSessionStore_AppendEntryAutoCreatesSession(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	err = s.AppendEntry("carol", store.ConversationEntry{
		Ts:      time.Now(),
		From:    "user",
		Content: "hello",
		Type:    store.EntryMessage,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("carol"); !ok {
		t.Fatal("expected AppendEntry to auto-create session carol")
	}

	log, err := s.ReadLog("carol", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].Content != "hello" {
		t.Fatalf("unexpected log contents: %+v", log)
	}
}

func TestSessionStore_ReadLogRespectsTailLimit(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := s.AppendEntry("dave", store.ConversationEntry{Ts: time.Now(), Type: store.EntryMessage}); err != nil {
			t.Fatal(err)
		}
	}
	log, err := s.ReadLog("dave", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Fatalf("expected tail of 2, got %d", len(log))
	}
}

func TestSessionStore_DeleteSessionReturnsFinalLog(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AppendEntry("erin", store.ConversationEntry{Ts: time.Now(), Content: "x", Type: store.EntryMessage}); err != nil {
		t.Fatal(err)
	}

	log, err := s.DeleteSession("erin", "test teardown")
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 {
		t.Fatalf("expected 1 entry in returned log, got %d", len(log))
	}
	if _, ok := s.Get("erin"); ok {
		t.Fatal("expected session erin to be gone after delete")
	}
}

func TestSessionStore_DeleteSessionUnknownReturnsError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSessionStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.DeleteSession("ghost", "n/a"); err != store.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
