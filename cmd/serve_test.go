package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/config"
)

func TestUpperSnake(t *testing.T) {
	cases := map[string]string{
		"openai":   "OPENAI",
		"together": "TOGETHER",
		"":         "",
	}
	for in, want := range cases {
		if got := upperSnake(in); got != want {
			t.Errorf("upperSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProviderEnvVar(t *testing.T) {
	if got, want := providerEnvVar("together"), "WOPR_PROVIDER_TOGETHER_API_KEY"; got != want {
		t.Errorf("providerEnvVar() = %q, want %q", got, want)
	}
}

func TestOpenAICompatBaseURL_DefaultsWithoutOverride(t *testing.T) {
	got := openAICompatBaseURL(config.ProviderOptions{})
	if want := "https://api.openai.com"; got != want {
		t.Errorf("openAICompatBaseURL() = %q, want %q", got, want)
	}
}

func TestOpenAICompatBaseURL_HonorsConfiguredOverride(t *testing.T) {
	opts := config.ProviderOptions{Options: map[string]interface{}{"baseURL": "https://my-proxy.example.com"}}
	got := openAICompatBaseURL(opts)
	if want := "https://my-proxy.example.com"; got != want {
		t.Errorf("openAICompatBaseURL() = %q, want %q", got, want)
	}
}

func TestEventRecorderCapacity_FallsBackWhenUnset(t *testing.T) {
	cfg := &config.Config{}
	if got, want := eventRecorderCapacity(cfg), 500; got != want {
		t.Errorf("eventRecorderCapacity() = %d, want %d", got, want)
	}
}

func TestEventRecorderCapacity_UsesConfiguredValue(t *testing.T) {
	cfg := &config.Config{Cron: config.CronConfig{HistoryCapacity: 42}}
	if got, want := eventRecorderCapacity(cfg), 42; got != want {
		t.Errorf("eventRecorderCapacity() = %d, want %d", got, want)
	}
}

func TestExistingMigrationsDir_EmptyWhenDirMissing(t *testing.T) {
	t.Setenv("WOPR_MIGRATIONS_DIR", filepath.Join(t.TempDir(), "does-not-exist"))
	migrationsDir = ""
	if got := existingMigrationsDir(); got != "" {
		t.Errorf("existingMigrationsDir() = %q, want empty for a missing dir", got)
	}
}

func TestExistingMigrationsDir_ReturnsPathWhenPresent(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "migrations"), 0755); err != nil {
		t.Fatal(err)
	}
	migDir := filepath.Join(dir, "migrations")
	t.Setenv("WOPR_MIGRATIONS_DIR", migDir)
	migrationsDir = ""
	if got := existingMigrationsDir(); got != migDir {
		t.Errorf("existingMigrationsDir() = %q, want %q", got, migDir)
	}
}
