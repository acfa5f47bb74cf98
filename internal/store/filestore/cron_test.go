package filestore

import (
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

func TestCronStore_CreateGetDeleteJob(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCronStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	job := store.CronJob{Name: "daily-report", Schedule: "0 9 * * *", Session: "ops", Message: "run report"}
	if err := c.CreateJob(job); err != nil {
		t.Fatal(err)
	}

	got, ok := c.GetJob("daily-report")
	if !ok {
		t.Fatal("expected job to exist")
	}
	if got.Schedule != job.Schedule {
		t.Errorf("schedule mismatch: %q != %q", got.Schedule, job.Schedule)
	}

	if err := c.DeleteJob("daily-report"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetJob("daily-report"); ok {
		t.Fatal("expected job to be gone after delete")
	}
}

func TestCronStore_DeleteUnknownJobErrors(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCronStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteJob("nope"); err != store.ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCronStore_AppendHistoryEvictsBeyondCapacity(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCronStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := c.AppendHistory(store.CronHistoryEntry{Name: "job"}, 3); err != nil {
			t.Fatal(err)
		}
	}
	hist := c.ListHistory()
	if len(hist) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(hist))
	}
}

func TestCronStore_JobsPersistAcrossReload(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCronStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.CreateJob(store.CronJob{Name: "ping", Schedule: "* * * * *"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewCronStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.GetJob("ping"); !ok {
		t.Fatal("expected job to survive reload")
	}
}
