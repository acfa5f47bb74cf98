package filestore

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

func TestIdentityStore_LoadMissingReturnsFalse(t *testing.T) {
	s := NewIdentityStore(t.TempDir())
	_, found, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected no identity on fresh store")
	}
}

func TestIdentityStore_SaveThenLoadRoundtrips(t *testing.T) {
	s := NewIdentityStore(t.TempDir())
	identity := store.Identity{
		SignPub:     "signpub",
		SignPriv:    "signpriv",
		EncryptPub:  "encpub",
		EncryptPriv: "encpriv",
		Created:     time.Now().UTC(),
	}
	if err := s.Save(identity); err != nil {
		t.Fatal(err)
	}

	loaded, found, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected identity to be found")
	}
	if loaded.SignPub != identity.SignPub || loaded.EncryptPub != identity.EncryptPub {
		t.Fatalf("loaded identity mismatch: %+v", loaded)
	}
}
