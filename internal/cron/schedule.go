// Package cron implements WOPR's C7 cron scheduler: deterministic
// next-fire computation over 5-field expressions and one-shot
// conveniences, a single daemon-wide ticking loop, script execution, and
// history recording (spec §4.6). Grounded on goclaw's direct
// github.com/adhocore/gronx dependency for the 5-field math; the
// one-shot parser and firing loop are original, since no
// internal/scheduler or internal/cron file survived into the retrieval
// pack to imitate directly (only referenced from cmd/gateway_cron.go).
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// NextFire computes a job's next fire time relative to now. "once"
// schedules (job.Once) resolve to the stored RunAt as is, which may
// already be past; a standard 5-field cron expression resolves to its
// first tick strictly after now, and a one-shot convenience string to
// the time it names relative to now.
func NextFire(schedule string, once bool, runAt *time.Time, now time.Time) (time.Time, error) {
	if once {
		if runAt == nil {
			return time.Time{}, fmt.Errorf("cron: once job missing runAt")
		}
		return *runAt, nil
	}
	if t, ok, err := parseOneShot(schedule, now); ok {
		return t, err
	}
	return nextCronFire(schedule, now)
}

// ParseSchedule resolves a schedule string at creation time: a one-shot
// convenience syntax becomes a concrete RunAt (and Once=true); a 5-field
// cron expression is validated and passed through unchanged.
func ParseSchedule(schedule string, now time.Time) (resolvedSchedule string, once bool, runAt *time.Time, err error) {
	if t, ok, perr := parseOneShot(schedule, now); ok {
		if perr != nil {
			return "", false, nil, perr
		}
		return schedule, true, &t, nil
	}
	if _, perr := nextCronFire(schedule, now); perr != nil {
		return "", false, nil, perr
	}
	return schedule, false, nil, nil
}

// parseOneShot recognizes +5m, +1h, HH:MM, and ISO-8601 timestamps. The
// bool return reports whether schedule matched a one-shot form at all;
// callers fall through to 5-field cron parsing when it's false.
func parseOneShot(schedule string, now time.Time) (time.Time, bool, error) {
	s := strings.TrimSpace(schedule)

	if strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, true, fmt.Errorf("cron: invalid relative schedule %q: %w", schedule, err)
		}
		return now.Add(d), true, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true, nil
	}

	if hh, mm, ok := parseClock(s); ok {
		t := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true, nil
	}

	return time.Time{}, false, nil
}

func parseClock(s string) (hh, mm int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

func nextCronFire(expr string, now time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, now, false)
}
