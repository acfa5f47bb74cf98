package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// CronStore is the Postgres-backed store.CronStore for managed mode.
type CronStore struct {
	db *sql.DB
}

func NewCronStore(db *sql.DB) *CronStore { return &CronStore{db: db} }

func (c *CronStore) CreateJob(job store.CronJob) error {
	ctx := context.Background()
	scriptsJSON, err := json.Marshal(job.Scripts)
	if err != nil {
		return fmt.Errorf("marshal scripts: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO cron_jobs (name, schedule, session, message, scripts, once, run_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET
		   schedule = EXCLUDED.schedule, session = EXCLUDED.session, message = EXCLUDED.message,
		   scripts = EXCLUDED.scripts, once = EXCLUDED.once, run_at = EXCLUDED.run_at, created_by = EXCLUDED.created_by`,
		job.Name, job.Schedule, job.Session, job.Message, scriptsJSON, job.Once, job.RunAt, job.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create cron job: %w", err)
	}
	return nil
}

func (c *CronStore) DeleteJob(name string) error {
	ctx := context.Background()
	res, err := c.db.ExecContext(ctx, "DELETE FROM cron_jobs WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("delete cron job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrJobNotFound
	}
	return nil
}

func (c *CronStore) GetJob(name string) (*store.CronJob, bool) {
	ctx := context.Background()
	row := c.db.QueryRowContext(ctx,
		"SELECT name, schedule, session, message, scripts, once, run_at, created_by FROM cron_jobs WHERE name = $1", name)
	job, err := scanCronJob(row)
	if err != nil {
		return nil, false
	}
	return job, true
}

func (c *CronStore) ListJobs() []store.CronJob {
	ctx := context.Background()
	rows, err := c.db.QueryContext(ctx,
		"SELECT name, schedule, session, message, scripts, once, run_at, created_by FROM cron_jobs ORDER BY name")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []store.CronJob
	for rows.Next() {
		job, err := scanCronJob(rows)
		if err != nil {
			continue
		}
		out = append(out, *job)
	}
	return out
}

func scanCronJob(row rowScanner) (*store.CronJob, error) {
	var job store.CronJob
	var scriptsJSON []byte
	if err := row.Scan(&job.Name, &job.Schedule, &job.Session, &job.Message, &scriptsJSON, &job.Once, &job.RunAt, &job.CreatedBy); err != nil {
		return nil, err
	}
	if len(scriptsJSON) > 0 {
		json.Unmarshal(scriptsJSON, &job.Scripts)
	}
	return &job, nil
}

func (c *CronStore) AppendHistory(entry store.CronHistoryEntry, capacity int) error {
	ctx := context.Background()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cron_history (ts, name, session, message, success, duration_ms, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Ts, entry.Name, entry.Session, entry.Message, entry.Success, entry.DurationMs, entry.Error,
	)
	if err != nil {
		return fmt.Errorf("append cron history: %w", err)
	}
	if capacity > 0 {
		_, err = c.db.ExecContext(ctx,
			`DELETE FROM cron_history WHERE id IN (
			   SELECT id FROM cron_history ORDER BY ts DESC OFFSET $1
			 )`, capacity)
		if err != nil {
			return fmt.Errorf("trim cron history: %w", err)
		}
	}
	return nil
}

func (c *CronStore) ListHistory() []store.CronHistoryEntry {
	ctx := context.Background()
	rows, err := c.db.QueryContext(ctx,
		"SELECT ts, name, session, message, success, duration_ms, error FROM cron_history ORDER BY ts")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []store.CronHistoryEntry
	for rows.Next() {
		var entry store.CronHistoryEntry
		var errStr sql.NullString
		if err := rows.Scan(&entry.Ts, &entry.Name, &entry.Session, &entry.Message, &entry.Success, &entry.DurationMs, &errStr); err != nil {
			continue
		}
		entry.Error = errStr.String
		out = append(out, entry)
	}
	return out
}
