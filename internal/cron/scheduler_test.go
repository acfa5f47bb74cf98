package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

type memCronStore struct {
	mu      sync.Mutex
	jobs    map[string]store.CronJob
	history []store.CronHistoryEntry
}

func newMemCronStore() *memCronStore {
	return &memCronStore{jobs: map[string]store.CronJob{}}
}

func (m *memCronStore) CreateJob(job store.CronJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.Name] = job
	return nil
}

func (m *memCronStore) DeleteJob(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, name)
	return nil
}

func (m *memCronStore) GetJob(name string) (*store.CronJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	return &j, ok
}

func (m *memCronStore) ListJobs() []store.CronJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CronJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out
}

func (m *memCronStore) AppendHistory(entry store.CronHistoryEntry, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entry)
	if len(m.history) > capacity {
		m.history = m.history[len(m.history)-capacity:]
	}
	return nil
}

func (m *memCronStore) ListHistory() []store.CronHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.CronHistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

type memPeerStore struct {
	peers  map[string]store.Peer
	grants map[string]store.AccessGrant
}

func newMemPeerStore() *memPeerStore {
	return &memPeerStore{peers: map[string]store.Peer{}, grants: map[string]store.AccessGrant{}}
}
func (m *memPeerStore) UpsertPeer(p store.Peer) error { m.peers[p.PublicKey] = p; return nil }
func (m *memPeerStore) GetPeer(k string) (*store.Peer, bool) {
	p, ok := m.peers[k]
	return &p, ok
}
func (m *memPeerStore) ListPeers() []store.Peer { return nil }
func (m *memPeerStore) CreateGrant(g store.AccessGrant) error {
	m.grants[g.ID] = g
	return nil
}
func (m *memPeerStore) GetGrant(id string) (*store.AccessGrant, bool) {
	g, ok := m.grants[id]
	return &g, ok
}
func (m *memPeerStore) ListGrants() []store.AccessGrant { return nil }
func (m *memPeerStore) DeleteGrant(id string) error     { delete(m.grants, id); return nil }

func testConfig(enforcement string, scriptsEnabled bool) *config.Config {
	cfg := config.Default()
	cfg.Security.Enforcement = enforcement
	cfg.Daemon.CronScriptsEnabled = scriptsEnabled
	return cfg
}

func TestScheduler_FireDispatchesDueJobAndRecordsHistory(t *testing.T) {
	cronStore := newMemCronStore()
	cronStore.CreateJob(store.CronJob{
		Name: "ping", Schedule: "+1ms", Once: true, Session: "main", Message: "hi",
	})
	next, _, runAt, err := ParseSchedule("+1ms", time.Now())
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	job, _ := cronStore.GetJob("ping")
	job.Schedule = next
	job.RunAt = runAt
	job.Once = true
	cronStore.CreateJob(*job)

	kernel := security.NewKernel(testConfig("enforce", false), newMemPeerStore(), nil, nil)

	var dispatched struct {
		sync.Mutex
		session, message string
		calls            int
	}
	dispatch := func(ctx context.Context, session, message string, source security.InjectionSource) error {
		dispatched.Lock()
		defer dispatched.Unlock()
		dispatched.session = session
		dispatched.message = message
		dispatched.calls++
		return nil
	}

	s := NewScheduler(cronStore, kernel, testConfig("enforce", false), dispatch)
	s.fire(context.Background(), *job)

	dispatched.Lock()
	defer dispatched.Unlock()
	if dispatched.calls != 1 {
		t.Fatalf("expected dispatch called once, got %d", dispatched.calls)
	}
	if dispatched.session != "main" || dispatched.message != "hi" {
		t.Fatalf("unexpected dispatch args: %+v", dispatched)
	}

	history := cronStore.ListHistory()
	if len(history) != 1 || !history[0].Success {
		t.Fatalf("expected one successful history entry, got %+v", history)
	}
	if _, ok := cronStore.GetJob("ping"); ok {
		t.Fatal("expected one-shot job to be deleted after firing")
	}
}

func TestScheduler_FireRejectsScriptsWhenDisabled(t *testing.T) {
	cronStore := newMemCronStore()
	job := store.CronJob{
		Name: "withscript", Schedule: "+1ms", Once: true, Session: "main", Message: "hi",
		Scripts: []store.Script{{Name: "s", Command: "echo hi"}},
	}
	cronStore.CreateJob(job)

	kernel := security.NewKernel(testConfig("enforce", false), newMemPeerStore(), nil, nil)
	called := false
	dispatch := func(ctx context.Context, session, message string, source security.InjectionSource) error {
		called = true
		return nil
	}

	s := NewScheduler(cronStore, kernel, testConfig("enforce", false), dispatch)
	s.fire(context.Background(), job)

	if called {
		t.Fatal("expected dispatch not to be called when scripts are disabled")
	}
	history := cronStore.ListHistory()
	if len(history) != 1 || history[0].Error != "scripts_disabled" {
		t.Fatalf("expected scripts_disabled history entry, got %+v", history)
	}
}

func TestScheduler_FireSubstitutesScriptOutputIntoMessage(t *testing.T) {
	cronStore := newMemCronStore()
	job := store.CronJob{
		Name: "withscript", Schedule: "+1ms", Once: true, Session: "main", Message: "result: {{check}}",
		Scripts: []store.Script{{Name: "check", Command: "echo ok"}},
	}
	cronStore.CreateJob(job)

	kernel := security.NewKernel(testConfig("enforce", true), newMemPeerStore(), nil, nil)
	var gotMessage string
	dispatch := func(ctx context.Context, session, message string, source security.InjectionSource) error {
		gotMessage = message
		return nil
	}

	s := NewScheduler(cronStore, kernel, testConfig("enforce", true), dispatch)
	s.fire(context.Background(), job)

	if gotMessage != "result: ok" {
		t.Fatalf("expected substituted message, got %q", gotMessage)
	}
}

func TestScheduler_FireDeniesCrossSessionInjectInEnforceMode(t *testing.T) {
	cronStore := newMemCronStore()
	job := store.CronJob{
		Name: "cross", Schedule: "+1ms", Once: true, Session: "other", Message: "hi", CreatedBy: "main",
	}
	cronStore.CreateJob(job)

	kernel := security.NewKernel(testConfig("enforce", false), newMemPeerStore(), nil, nil)
	called := false
	dispatch := func(ctx context.Context, session, message string, source security.InjectionSource) error {
		called = true
		return nil
	}

	s := NewScheduler(cronStore, kernel, testConfig("enforce", false), dispatch)
	s.fire(context.Background(), job)

	if called {
		t.Fatal("expected cross-session dispatch to be denied in enforce mode")
	}
	history := cronStore.ListHistory()
	if len(history) != 1 || history[0].Success {
		t.Fatalf("expected a failed history entry for denied cross-inject, got %+v", history)
	}
}

func TestScheduler_FireAllowsCrossSessionInjectWithSnapshottedGrant(t *testing.T) {
	cronStore := newMemCronStore()
	job := store.CronJob{
		Name: "cross-granted", Schedule: "+1ms", Once: true, Session: "other", Message: "hi",
		CreatedBy:           "main",
		CreatorCapabilities: []string{"cross.inject"},
	}
	cronStore.CreateJob(job)

	kernel := security.NewKernel(testConfig("enforce", false), newMemPeerStore(), nil, nil)
	called := false
	dispatch := func(ctx context.Context, session, message string, source security.InjectionSource) error {
		called = true
		return nil
	}

	s := NewScheduler(cronStore, kernel, testConfig("enforce", false), dispatch)
	s.fire(context.Background(), job)

	if !called {
		t.Fatal("expected cross-session dispatch to proceed when the creator's snapshotted grant includes cross.inject")
	}
	history := cronStore.ListHistory()
	if len(history) != 1 || !history[0].Success {
		t.Fatalf("expected a successful history entry for granted cross-inject, got %+v", history)
	}
}

func TestScheduler_UntilNextFireReflectsEarliestJob(t *testing.T) {
	cronStore := newMemCronStore()
	far := time.Now().Add(time.Hour)
	near := time.Now().Add(2 * time.Second)
	cronStore.CreateJob(store.CronJob{Name: "far", Once: true, RunAt: &far, Session: "main", Message: "x"})
	cronStore.CreateJob(store.CronJob{Name: "near", Once: true, RunAt: &near, Session: "main", Message: "x"})

	kernel := security.NewKernel(testConfig("enforce", false), newMemPeerStore(), nil, nil)
	s := NewScheduler(cronStore, kernel, testConfig("enforce", false), nil)

	wait := s.untilNextFire(time.Now())
	if wait > 3*time.Second {
		t.Fatalf("expected wait bounded by the near job, got %v", wait)
	}
}

func TestScheduler_StartStopIsIdempotent(t *testing.T) {
	cronStore := newMemCronStore()
	kernel := security.NewKernel(testConfig("enforce", false), newMemPeerStore(), nil, nil)
	s := NewScheduler(cronStore, kernel, testConfig("enforce", false), func(ctx context.Context, session, message string, source security.InjectionSource) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Start(ctx) // idempotent, must not panic or double-run the loop
	s.Stop()
	s.Stop() // idempotent
}
