package cron

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

const defaultScriptTimeout = 30 * time.Second

// ScriptOutcome is one script's result within a job firing (spec §4.6 step 2).
type ScriptOutcome struct {
	Name       string
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs int64
	Error      string
}

// RunScripts executes a job's scripts serially in an external shell with
// cwd and timeout (default 30s, hard cap). A script's failure does not
// abort its siblings.
func RunScripts(ctx context.Context, scripts []store.Script) []ScriptOutcome {
	outcomes := make([]ScriptOutcome, 0, len(scripts))
	for _, s := range scripts {
		outcomes = append(outcomes, runScript(ctx, s))
	}
	return outcomes
}

func runScript(ctx context.Context, s store.Script) ScriptOutcome {
	timeout := defaultScriptTimeout
	if s.Timeout != "" {
		if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 && d < defaultScriptTimeout {
			timeout = d
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	cmd := exec.CommandContext(runCtx, "sh", "-c", s.Command)
	if s.Cwd != "" {
		cmd.Dir = s.Cwd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outcome := ScriptOutcome{
		Name:       s.Name,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(started).Milliseconds(),
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		outcome.Error = "timed out after " + timeout.String()
		outcome.ExitCode = -1
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			outcome.ExitCode = exitErr.ExitCode()
		} else {
			outcome.ExitCode = -1
		}
		outcome.Error = err.Error()
	}
	return outcome
}

// SubstituteTemplate replaces {{name}} placeholders in message with the
// trimmed stdout of the matching script outcome; a failed script
// substitutes "[script error: <reason>]" instead (spec §4.6 step 3).
func SubstituteTemplate(message string, outcomes []ScriptOutcome) string {
	result := message
	for _, o := range outcomes {
		placeholder := "{{" + o.Name + "}}"
		replacement := strings.TrimSpace(o.Stdout)
		if o.Error != "" {
			replacement = "[script error: " + o.Error + "]"
		}
		result = strings.ReplaceAll(result, placeholder, replacement)
	}
	return result
}
