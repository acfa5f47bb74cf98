package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Home resolves WOPR_HOME (default $HOME/wopr), per spec §6.4.
func Home() string {
	if v := os.Getenv("WOPR_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "wopr"
	}
	return filepath.Join(home, "wopr")
}

// IdentityDir resolves GLOBAL_IDENTITY_DIR (default <WOPR_HOME>/identity).
func IdentityDir() string {
	if v := os.Getenv("GLOBAL_IDENTITY_DIR"); v != "" {
		return v
	}
	return filepath.Join(Home(), "identity")
}

// Path returns the path to config.json under WOPR_HOME.
func Path() string {
	return filepath.Join(Home(), "config.json")
}

// Load reads config.json, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Gateway.BootstrapToken == "" {
		cfg.Gateway.BootstrapToken = os.Getenv("WOPR_BOOTSTRAP_TOKEN")
	}
	cfg.Database.PostgresDSN = os.Getenv("WOPR_POSTGRES_DSN")
	return cfg, nil
}

// Save writes the config atomically (temp file + rename), matching the
// atomic-write texture used throughout the store package.
func Save(path string, cfg *Config) error {
	snap := cfg.Snapshot()
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()
	return os.Rename(tmpPath, path)
}

// ReloadFunc is invoked with the freshly loaded config whenever the watched
// file changes.
type ReloadFunc func(*Config)

// Watch starts an fsnotify watcher on path and calls onReload with a newly
// loaded Config whenever the file is written. It runs until ctx is done.
func Watch(ctx context.Context, path string, onReload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config watch: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("config.reload_failed", "error", err)
					continue
				}
				onReload(cfg)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config.watch_error", "error", werr)
			}
		}
	}()
	return nil
}
