package cmd

import (
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/config"
)

func TestResolveConfigPath_FlagTakesPriority(t *testing.T) {
	t.Setenv("WOPR_CONFIG", "/from/env.json")
	cfgFile = "/from/flag.json"
	defer func() { cfgFile = "" }()

	if got, want := resolveConfigPath(), "/from/flag.json"; got != want {
		t.Errorf("resolveConfigPath() = %q, want %q", got, want)
	}
}

func TestResolveConfigPath_FallsBackToEnvThenDefault(t *testing.T) {
	cfgFile = ""
	t.Setenv("WOPR_CONFIG", "/from/env.json")
	if got, want := resolveConfigPath(), "/from/env.json"; got != want {
		t.Errorf("resolveConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("WOPR_CONFIG", "")
	t.Setenv("WOPR_HOME", "/tmp/wopr-test-home")
	if got, want := resolveConfigPath(), config.Path(); got != want {
		t.Errorf("resolveConfigPath() = %q, want %q", got, want)
	}
}
