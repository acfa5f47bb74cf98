package queue

import (
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/bus"
)

// Manager owns one SessionQueue per session name, creating them lazily on
// first enqueue and reaping idle ones on a ticker (SPEC_FULL.md §5.3:
// "owned by a QueueManager whose cleanup(maxIdleMs) reaper runs on a
// ticker from the daemon's lifecycle, started/stopped alongside the cron
// ticker").
type Manager struct {
	worker Worker
	bus    bus.EventPublisher

	mu      sync.Mutex
	queues  map[string]*SessionQueue
	ticker  *time.Ticker
	stopCh  chan struct{}
	stopped bool
}

func NewManager(worker Worker, publisher bus.EventPublisher) *Manager {
	return &Manager{
		worker: worker,
		bus:    publisher,
		queues: make(map[string]*SessionQueue),
	}
}

// Enqueue routes to the named session's queue, creating it if this is the
// first injection for that session.
func (m *Manager) Enqueue(ctx context.Context, session, message string, priority int, source interface{}) (*Item, *Future) {
	return m.queueFor(session).Enqueue(ctx, message, priority, source)
}

func (m *Manager) queueFor(session string) *SessionQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[session]
	if !ok {
		q = newSessionQueue(session, m.worker, m.bus)
		m.queues[session] = q
	}
	return q
}

func (m *Manager) CancelActive(session string) bool {
	m.mu.Lock()
	q := m.queues[session]
	m.mu.Unlock()
	if q == nil {
		return false
	}
	return q.CancelActive()
}

func (m *Manager) CancelQueued(session string) int {
	m.mu.Lock()
	q := m.queues[session]
	m.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.CancelQueued()
}

func (m *Manager) CancelAll(session string) int {
	m.mu.Lock()
	q := m.queues[session]
	m.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.CancelAll()
}

func (m *Manager) Stats(session string) (Stats, bool) {
	m.mu.Lock()
	q := m.queues[session]
	m.mu.Unlock()
	if q == nil {
		return Stats{}, false
	}
	return q.Stats(), true
}

// StartReaper launches the idle-queue cleanup ticker. It runs until
// StopReaper is called, deleting any session queue that has had no
// active or pending work for at least maxIdle.
func (m *Manager) StartReaper(interval, maxIdle time.Duration) {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		return
	}
	m.ticker = time.NewTicker(interval)
	m.stopCh = make(chan struct{})
	ticker := m.ticker
	stopCh := m.stopCh
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				m.cleanup(maxIdle)
			case <-stopCh:
				return
			}
		}
	}()
}

func (m *Manager) StopReaper() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticker == nil || m.stopped {
		return
	}
	m.ticker.Stop()
	close(m.stopCh)
	m.stopped = true
}

// cleanup removes queues idle for at least maxIdle, per spec §4.3's
// "idle timestamp used by the manager's reaper".
func (m *Manager) cleanup(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for session, q := range m.queues {
		idleAt, idle := q.idleSince()
		if !idle || now.Sub(idleAt) < maxIdle {
			continue
		}
		q.shutdown()
		delete(m.queues, session)
		removed++
	}
	return removed
}
