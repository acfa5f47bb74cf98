package filestore

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// CronStore is the file-backed store.CronStore implementation: jobs live in
// crons.json, fire outcomes in cron-history.json as a capacity-bounded ring
// (spec §3, §7 supplement: default capacity 500).
type CronStore struct {
	mu      sync.Mutex
	home    string
	jobs    map[string]store.CronJob
	history []store.CronHistoryEntry
}

func NewCronStore(home string) (*CronStore, error) {
	c := &CronStore{home: home, jobs: make(map[string]store.CronJob)}
	var jobs []store.CronJob
	if _, err := readJSON(c.jobsPath(), &jobs); err != nil {
		return nil, err
	}
	for _, j := range jobs {
		c.jobs[j.Name] = j
	}
	if _, err := readJSON(c.historyPath(), &c.history); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CronStore) jobsPath() string    { return filepath.Join(c.home, "crons.json") }
func (c *CronStore) historyPath() string { return filepath.Join(c.home, "cron-history.json") }

func (c *CronStore) persistJobsLocked() error {
	list := make([]store.CronJob, 0, len(c.jobs))
	for _, j := range c.jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return writeAtomic(c.jobsPath(), list)
}

func (c *CronStore) CreateJob(job store.CronJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[job.Name] = job
	return c.persistJobsLocked()
}

func (c *CronStore) DeleteJob(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jobs[name]; !ok {
		return store.ErrJobNotFound
	}
	delete(c.jobs, name)
	return c.persistJobsLocked()
}

func (c *CronStore) GetJob(name string) (*store.CronJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[name]
	if !ok {
		return nil, false
	}
	clone := job
	return &clone, true
}

func (c *CronStore) ListJobs() []store.CronJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]store.CronJob, 0, len(c.jobs))
	for _, j := range c.jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// AppendHistory evicts the oldest entries once capacity is exceeded.
func (c *CronStore) AppendHistory(entry store.CronHistoryEntry, capacity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, entry)
	if capacity > 0 && len(c.history) > capacity {
		c.history = c.history[len(c.history)-capacity:]
	}
	return writeAtomic(c.historyPath(), c.history)
}

func (c *CronStore) ListHistory() []store.CronHistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.CronHistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}
