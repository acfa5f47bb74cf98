package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryDo_SucceedsWithoutRetryOnFirstTry(t *testing.T) {
	calls := 0
	result, err := RetryDo(context.Background(), DefaultRetryConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("unexpected result %q, err %v", result, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryDo_RetriesOnRetryableStatus(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	result, err := RetryDo(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &HTTPError{Status: 500, Body: "server error"}
		}
		return "recovered", nil
	})
	if err != nil || result != "recovered" {
		t.Fatalf("unexpected result %q, err %v", result, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryDo_DoesNotRetryNonRetryableStatus(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), DefaultRetryConfig(), func() (string, error) {
		calls++
		return "", &HTTPError{Status: 400, Body: "bad request"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable status, got %d", calls)
	}
}

func TestRetryDo_DoesNotRetryNonHTTPError(t *testing.T) {
	calls := 0
	sentinel := errors.New("boom")
	_, err := RetryDo(context.Background(), DefaultRetryConfig(), func() (string, error) {
		calls++
		return "", sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-HTTP error, got %d", calls)
	}
}

func TestRetryDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	_, err := RetryDo(context.Background(), cfg, func() (string, error) {
		calls++
		return "", &HTTPError{Status: 429, Body: "rate limited"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"":     0,
		"0":    0,
		"-5":   0,
		"2":    2 * time.Second,
		"junk": 0,
	}
	for header, want := range cases {
		if got := ParseRetryAfter(header); got != want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", header, got, want)
		}
	}
}
