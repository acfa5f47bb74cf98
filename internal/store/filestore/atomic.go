// Package filestore is the default C1 storage backend: atomically-written
// JSON documents under WOPR_HOME (spec §6.4). Adapted directly from
// goclaw's internal/sessions/manager.go Save/loadAll (temp file + fsync +
// rename), generalized to every document this package persists.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// writeAtomic marshals v as indented JSON and writes it to path via a
// temp-file-then-rename, matching goclaw's Session.Save discipline.
func writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicBytes(path, data)
}

// writeAtomicBytes is writeAtomic's byte-level primitive, reused by the
// memory store for plain markdown documents (spec §6.4's `memory/*.md`).
func writeAtomicBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "wopr-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// readJSON loads path into v. Returns (false, nil) if the file doesn't exist.
func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
