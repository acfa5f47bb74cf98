package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/cron"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// CronCreateTool schedules a new cron job (cron.manage capability).
// Schedule syntax is validated and one-shot schedules resolved to a
// concrete RunAt here, at creation time, where cross.inject is also
// gated (spec §4.6: creating a cron targeting another session requires
// it). The creator's granted capabilities are snapshotted onto the job
// so the fire-time recheck in internal/cron's Scheduler evaluates the
// grant actually held at creation, since it may be revoked by fire time.
type CronCreateTool struct {
	cron   store.CronStore
	cfg    *config.Config
	kernel *security.Kernel
}

func NewCronCreateTool(cronStore store.CronStore, cfg *config.Config, kernel *security.Kernel) *CronCreateTool {
	return &CronCreateTool{cron: cronStore, cfg: cfg, kernel: kernel}
}

func (t *CronCreateTool) Name() string        { return "cron_create" }
func (t *CronCreateTool) Description() string { return "Schedule a cron job or one-shot injection." }
func (t *CronCreateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":     map[string]interface{}{"type": "string"},
			"schedule": map[string]interface{}{"type": "string", "description": "5-field cron expr, or a one-shot like +5m/+1h/HH:MM/ISO-8601"},
			"session":  map[string]interface{}{"type": "string"},
			"message":  map[string]interface{}{"type": "string"},
			"scripts": map[string]interface{}{
				"type":        "array",
				"description": "optional scripts run before dispatch; requires daemon.cronScriptsEnabled",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":    map[string]interface{}{"type": "string"},
						"command": map[string]interface{}{"type": "string"},
						"cwd":     map[string]interface{}{"type": "string"},
						"timeout": map[string]interface{}{"type": "string"},
					},
					"required": []string{"name", "command"},
				},
			},
		},
		"required": []string{"name", "schedule", "session", "message"},
	}
}

func (t *CronCreateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	schedule, _ := args["schedule"].(string)
	session, _ := args["session"].(string)
	message, _ := args["message"].(string)
	if name == "" || schedule == "" || session == "" || message == "" {
		return ErrTool("invalid_args", "name, schedule, session, and message are required")
	}

	scripts := parseScripts(args["scripts"])
	if len(scripts) > 0 && !t.cfg.CronScriptsEnabled() {
		return ErrTool("scripts_disabled", "cron script execution is disabled (daemon.cronScriptsEnabled=false)")
	}

	resolvedSchedule, once, runAt, err := cron.ParseSchedule(schedule, time.Now())
	if err != nil {
		return ErrTool("invalid_schedule", err.Error())
	}

	createdBy := TargetSessionFromCtx(ctx)
	var creatorCaps []string
	if createdBy != "" && createdBy != session {
		sc, ok := SecurityContextFromCtx(ctx)
		granted := ok && t.kernel.CheckCapability(sc, "cross.inject")
		if !granted {
			if t.cfg.Enforcement() == "enforce" {
				return ErrTool("capability_denied", "cross.inject is required to create a cron job targeting a session other than your own")
			}
			slog.Warn("cron.cross_inject_denied_warn_mode", "createdBy", createdBy, "target", session)
		}
		if ok {
			creatorCaps = sc.SortedCapabilities()
		}
	}

	job := store.CronJob{
		Name:                name,
		Schedule:            resolvedSchedule,
		Session:             session,
		Message:             message,
		Scripts:             scripts,
		Once:                once,
		RunAt:               runAt,
		CreatedBy:           createdBy,
		CreatorCapabilities: creatorCaps,
	}
	if err := t.cron.CreateJob(job); err != nil {
		return ErrTool("create_failed", err.Error())
	}
	return Ok(fmt.Sprintf("created cron job %s", name))
}

func parseScripts(raw interface{}) []store.Script {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	scripts := make([]store.Script, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		command, _ := m["command"].(string)
		if name == "" || command == "" {
			continue
		}
		cwd, _ := m["cwd"].(string)
		timeout, _ := m["timeout"].(string)
		scripts = append(scripts, store.Script{Name: name, Command: command, Cwd: cwd, Timeout: timeout})
	}
	return scripts
}

// CronDeleteTool removes a scheduled job.
type CronDeleteTool struct {
	cron store.CronStore
}

func NewCronDeleteTool(cron store.CronStore) *CronDeleteTool { return &CronDeleteTool{cron: cron} }

func (t *CronDeleteTool) Name() string        { return "cron_delete" }
func (t *CronDeleteTool) Description() string { return "Delete a scheduled cron job." }
func (t *CronDeleteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"name": map[string]interface{}{"type": "string"}},
		"required":   []string{"name"},
	}
}

func (t *CronDeleteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if name == "" {
		return ErrTool("invalid_args", "name is required")
	}
	if err := t.cron.DeleteJob(name); err != nil {
		return ErrTool("not_found", err.Error())
	}
	return Ok(fmt.Sprintf("deleted cron job %s", name))
}

// CronListTool lists scheduled jobs.
type CronListTool struct {
	cron store.CronStore
}

func NewCronListTool(cron store.CronStore) *CronListTool { return &CronListTool{cron: cron} }

func (t *CronListTool) Name() string        { return "cron_list" }
func (t *CronListTool) Description() string { return "List scheduled cron jobs." }
func (t *CronListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *CronListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	jobs := t.cron.ListJobs()
	out := "cron jobs:\n"
	for _, j := range jobs {
		out += fmt.Sprintf("- %s: %s -> %s (%q)\n", j.Name, j.Schedule, j.Session, j.Message)
	}
	return Ok(out)
}

// CronHistoryTool reads recent cron fire history.
type CronHistoryTool struct {
	cron store.CronStore
}

func NewCronHistoryTool(cron store.CronStore) *CronHistoryTool { return &CronHistoryTool{cron: cron} }

func (t *CronHistoryTool) Name() string        { return "cron_history" }
func (t *CronHistoryTool) Description() string { return "List recent cron fire history." }
func (t *CronHistoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *CronHistoryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	history := t.cron.ListHistory()
	out := "cron history:\n"
	for _, h := range history {
		status := "ok"
		if !h.Success {
			status = "error: " + h.Error
		}
		out += fmt.Sprintf("- %s %s@%s (%dms) %s\n", h.Ts.Format(time.RFC3339), h.Name, h.Session, h.DurationMs, status)
	}
	return Ok(out)
}
