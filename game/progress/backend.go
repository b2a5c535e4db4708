package progress

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend kinds accepted by OpenBackend
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenBackend builds the backend named by kind. dir is used by the file
// backend; sqlitePath by the SQLite one, defaulting to progress.db inside dir.
func OpenBackend(kind, dir, sqlitePath string) (Backend, error) {
	switch kind {
	case BackendMemory, "":
		return NewMemoryBackend(), nil
	case BackendFile:
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendSQLite:
		if sqlitePath == "" {
			sqlitePath = filepath.Join(dir, "progress.db")
		}
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		b, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown progress backend %q", kind)
}
