package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/afero"
)

// Load reads the table at path. A missing file is seeded with the default
// table; a malformed file is removed and seeded once.
func Load(fs afero.Fs, path string, logger *slog.Logger) (*Table, error) {
	return load(fs, path, logger, true)
}

// Read parses the table at path without touching the file. A missing file
// reads as the default table; a malformed file is an error.
func Read(fs afero.Fs, path string) (*Table, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read command table %q: %w", path, err)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("command table %q: %w", path, err)
	}
	return table, nil
}

func load(fs afero.Fs, path string, logger *slog.Logger, recreate bool) (*Table, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			table := Default()
			if werr := writeTable(fs, path, table); werr != nil {
				logWarn(logger, "unable to write default command table", "path", path, "error", werr.Error())
			} else {
				logInfo(logger, "created default command table", "path", path, "triggers", table.Len())
			}
			return table, nil
		}
		return nil, fmt.Errorf("read command table %q: %w", path, err)
	}

	table, err := Parse(data)
	if err == nil {
		return table, nil
	}
	if !recreate {
		return nil, fmt.Errorf("command table %q: %w", path, err)
	}

	logWarn(logger, "command table malformed; recreating defaults", "path", path, "error", err.Error())
	if rerr := fs.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		return nil, fmt.Errorf("remove malformed command table %q: %w", path, rerr)
	}
	return load(fs, path, logger, false)
}

func writeTable(fs afero.Fs, path string, table *Table) error {
	data, err := Encode(table)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create command table dir: %w", err)
		}
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// Store serves the current table and swaps it whole on reload.
type Store struct {
	fs      afero.Fs
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Table]
}

// NewStore loads the table at path with seeding/recreate semantics.
func NewStore(fs afero.Fs, path string, logger *slog.Logger) (*Store, error) {
	table, err := Load(fs, path, logger)
	if err != nil {
		return nil, err
	}
	s := &Store{fs: fs, path: path, logger: logger}
	s.current.Store(table)
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Table returns the current snapshot.
func (s *Store) Table() *Table {
	return s.current.Load()
}

// Reload re-reads the file. On any failure the previous table stays active.
func (s *Store) Reload() (*Table, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return s.Table(), fmt.Errorf("read command table %q: %w", s.path, err)
	}
	table, err := Parse(data)
	if err != nil {
		return s.Table(), fmt.Errorf("command table %q: %w", s.path, err)
	}
	s.current.Store(table)
	logInfo(s.logger, "command table reloaded", "path", s.path, "triggers", table.Len())
	return table, nil
}

func logWarn(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, args...)
}

func logInfo(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Info(msg, args...)
}
