package identity

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

type memIdentityStore struct {
	identity *store.Identity
}

func (m *memIdentityStore) Load() (*store.Identity, bool, error) {
	if m.identity == nil {
		return nil, false, nil
	}
	clone := *m.identity
	return &clone, true, nil
}

func (m *memIdentityStore) Save(identity store.Identity) error {
	m.identity = &identity
	return nil
}

func TestNewGeneratesIdentityWhenAbsent(t *testing.T) {
	backing := &memIdentityStore{}
	m, err := New(context.Background(), backing, nil)
	if err != nil {
		t.Fatal(err)
	}
	current := m.Current()
	if current.SignPub == "" || current.EncryptPub == "" {
		t.Fatal("expected generated identity to have key material")
	}
	if backing.identity == nil {
		t.Fatal("expected identity to be persisted")
	}
}

func TestNewReusesExistingIdentity(t *testing.T) {
	backing := &memIdentityStore{}
	first, err := New(context.Background(), backing, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(context.Background(), backing, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Current().SignPub != second.Current().SignPub {
		t.Fatal("expected second load to reuse the persisted identity")
	}
}

func TestRotatePublishesEventAndChangesKeys(t *testing.T) {
	backing := &memIdentityStore{}
	b := bus.New()
	m, err := New(context.Background(), backing, b)
	if err != nil {
		t.Fatal(err)
	}
	before := m.Current()

	var received bus.Event
	done := make(chan struct{})
	b.Subscribe("test", func(e bus.Event) {
		received = e
		close(done)
	})

	after, err := m.Rotate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	<-done

	if after.SignPub == before.SignPub {
		t.Fatal("expected rotation to change the signing key")
	}
	if after.RotatedFrom != before.SignPub {
		t.Fatalf("expected RotatedFrom to reference prior key, got %q", after.RotatedFrom)
	}
	if received.Name != bus.EventIdentityRotated {
		t.Fatalf("expected identity rotated event, got %q", received.Name)
	}
}

func TestDecodeSigningAndEncryptionKeys(t *testing.T) {
	backing := &memIdentityStore{}
	m, err := New(context.Background(), backing, nil)
	if err != nil {
		t.Fatal(err)
	}
	identity := m.Current()

	if _, _, err := DecodeSigningKey(identity); err != nil {
		t.Fatalf("decode signing key: %v", err)
	}
	if _, _, err := DecodeEncryptionKey(identity); err != nil {
		t.Fatalf("decode encryption key: %v", err)
	}
}
