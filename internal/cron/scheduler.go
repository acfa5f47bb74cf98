package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// DispatchFunc is the dispatch entry point a fired job calls into (C5).
// The cron package only knows how to produce a (session, message,
// InjectionSource) triple; it never touches the dispatch pipeline itself.
type DispatchFunc func(ctx context.Context, session, message string, source security.InjectionSource) error

// minTick bounds how long the scheduler ever sleeps in one iteration, so
// newly created jobs (whose next-fire may be sooner than whatever the
// loop last computed) are never missed for longer than this.
const minTick = time.Second

// Scheduler runs the single daemon-wide cron loop (spec §4.6): a timer
// that sleeps until the earliest next-fire across all jobs, fires every
// job due, executes its scripts, substitutes the message template, and
// dispatches into the target session.
type Scheduler struct {
	cron     store.CronStore
	kernel   *security.Kernel
	cfg      *config.Config
	dispatch DispatchFunc

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

func NewScheduler(cron store.CronStore, kernel *security.Kernel, cfg *config.Config, dispatch DispatchFunc) *Scheduler {
	return &Scheduler{cron: cron, kernel: kernel, cfg: cfg, dispatch: dispatch}
}

// Start launches the ticking loop in a new goroutine. Re-scheduling is
// safe across daemon restart: next-fire is always recomputed from "now"
// on load, so missed fires during downtime do not retroactively execute
// (spec §4.6).
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	go s.loop(ctx, stopCh)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	for {
		wait := s.untilNextFire(time.Now())
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			s.tick(ctx, time.Now())
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// untilNextFire computes how long to sleep before the next tick: the
// time until the earliest due job, bounded below by minTick so a newly
// enqueued job is never missed for more than one tick's worth of delay.
func (s *Scheduler) untilNextFire(now time.Time) time.Duration {
	jobs := s.cron.ListJobs()
	if len(jobs) == 0 {
		return minTick
	}
	var earliest time.Time
	for _, j := range jobs {
		next, err := NextFire(j.Schedule, j.Once, j.RunAt, now)
		if err != nil {
			continue
		}
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	if earliest.IsZero() {
		return minTick
	}
	wait := earliest.Sub(now)
	if wait < minTick {
		return minTick
	}
	return wait
}

// tick selects all jobs whose next-fire is at or before now and fires
// each in its own goroutine (jobs are independent; one job's script
// hang must not delay another's fire time).
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.cron.ListJobs() {
		next, err := NextFire(job.Schedule, job.Once, job.RunAt, now)
		if err != nil {
			slog.Warn("cron.schedule_error", "job", job.Name, "err", err)
			continue
		}
		if next.After(now) {
			continue
		}
		go s.fire(ctx, job)
	}
}

// fire runs one job's full lifecycle: cross-session capability gate,
// scripts, template substitution, dispatch, and history recording (spec
// §4.6 steps 2-6).
func (s *Scheduler) fire(ctx context.Context, job store.CronJob) {
	started := time.Now()
	history := store.CronHistoryEntry{Ts: started, Name: job.Name, Session: job.Session}

	if err := s.checkCrossInject(job); err != nil {
		if s.cfg.Enforcement() == "enforce" {
			history.Success = false
			history.Error = err.Error()
			history.DurationMs = time.Since(started).Milliseconds()
			s.recordHistory(history)
			if job.Once {
				_ = s.cron.DeleteJob(job.Name)
			}
			return
		}
		slog.Warn("cron.cross_inject_denied_warn_mode", "job", job.Name, "target", job.Session)
	}

	message := job.Message
	if len(job.Scripts) > 0 {
		if !s.cfg.CronScriptsEnabled() {
			history.Success = false
			history.Error = "scripts_disabled"
			history.DurationMs = time.Since(started).Milliseconds()
			s.recordHistory(history)
			if job.Once {
				_ = s.cron.DeleteJob(job.Name)
			}
			return
		}
		outcomes := RunScripts(ctx, job.Scripts)
		message = SubstituteTemplate(message, outcomes)
		for _, o := range outcomes {
			if o.Error != "" {
				history.Error = o.Error
			}
		}
	}

	source := security.InjectionSource{Type: security.SourceCron}
	dispatchErr := s.dispatch(ctx, job.Session, message, source)

	history.Success = dispatchErr == nil && history.Error == ""
	if dispatchErr != nil {
		if history.Error == "" {
			history.Error = dispatchErr.Error()
		}
	}
	history.DurationMs = time.Since(started).Milliseconds()
	s.recordHistory(history)

	if job.Once {
		_ = s.cron.DeleteJob(job.Name)
	}
}

// checkCrossInject enforces spec §4.6's "creating a cron that targets a
// session other than the creator's own requires cross.inject" at fire
// time, not just at creation time — a grant held at creation may have
// since expired or been revoked. It evaluates the creator's capabilities
// as snapshotted onto the job when it was created (CronCreateTool already
// gated creation on the same capability), not a reconstructed stand-in.
func (s *Scheduler) checkCrossInject(job store.CronJob) error {
	if job.CreatedBy == "" || job.CreatedBy == job.Session {
		return nil
	}
	ctx := security.SecurityContext{
		Capabilities: security.ExpandCapabilities(job.CreatorCapabilities),
	}
	return s.kernel.RequireCapability(ctx, "cross.inject")
}

func (s *Scheduler) recordHistory(entry store.CronHistoryEntry) {
	historyCapacity := s.cfg.Snapshot().Cron.HistoryCapacity
	if historyCapacity <= 0 {
		historyCapacity = 500
	}
	if err := s.cron.AppendHistory(entry, historyCapacity); err != nil {
		slog.Error("cron.history_append_failed", "job", entry.Name, "err", err)
	}
}
