// Package logfile manages the rotating set of per-run log files.
//
// Each run gets its own timestamped file under the platform's per-user
// log directory (plus an application subdirectory). The set is pruned
// to a fixed retention count whenever a new run starts, unless the
// application supplied an explicit log path, in which case rotation is
// never performed.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// DefaultMaxFiles is the managed retention limit, counting the file
// about to be created.
const DefaultMaxFiles = 5

// EnvLogDir overrides the platform log directory when set.
const EnvLogDir = "CRIER_LOG_DIR"

// Sink is the open log file for the current run. All emitted records
// are appended to it regardless of what the screen shows.
//
// Append is best-effort: a sink that fails to write (disk full,
// revoked mount) goes quiet rather than crashing the host application,
// leaving the screen as the fallback channel.
type Sink struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	runID string
}

// NewManaged opens a sink on a fresh managed log file for appName,
// pruning older run logs beyond the retention limit. maxFiles <= 0
// falls back to DefaultMaxFiles.
func NewManaged(appName string, maxFiles int) (*Sink, error) {
	if appName == "" {
		return nil, fmt.Errorf("application name cannot be empty")
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	dir, err := logDir(appName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	// Concurrent runs of the same application race on the prune/create
	// window; serialize it with a lock file in the log directory.
	lock := flock.New(filepath.Join(dir, ".crier.lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock log directory: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck // nothing useful to do on unlock failure

	// The limit includes the file about to be created.
	if err := prune(dir, appName, maxFiles-1); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s-%s.log", appName, time.Now().Format("20060102-150405.000000"))
	return open(filepath.Join(dir, name))
}

// Adopt opens a sink on an explicit log path supplied by the caller.
// No rotation or deletion is ever performed on adopted paths.
func Adopt(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return open(path)
}

func open(path string) (*Sink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	s := &Sink{
		file:  file,
		path:  path,
		runID: uuid.NewString(),
	}
	// Header line so interleaved postmortems can tell runs apart.
	fmt.Fprintf(file, "=== run %s started %s ===\n", s.runID, time.Now().Format(time.RFC3339))
	return s, nil
}

// Path returns the location of the current run's log file.
func (s *Sink) Path() string {
	return s.path
}

// RunID returns the unique identifier of the current run.
func (s *Sink) RunID() string {
	return s.runID
}

// Append writes one record to the log with a millisecond timestamp.
// Failures are swallowed; see the Sink doc.
func (s *Sink) Append(createdAt time.Time, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	ts := createdAt.Format("2006-01-02 15:04:05.000")
	if _, err := fmt.Fprintf(s.file, "%s %s\n", ts, text); err != nil {
		return
	}
	// Flush each record so crashes still leave a useful log behind.
	s.file.Sync() //nolint:errcheck
}

// Close releases the log file handle. Further Appends are no-ops.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// prune removes the oldest managed logs so at most keep remain.
// Filenames embed a sortable timestamp, so lexical order is creation
// order. Non-log files in the directory are ignored.
func prune(dir, appName string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read log directory: %w", err)
	}

	prefix := appName + "-"
	var logs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".log") {
			logs = append(logs, name)
		}
	}
	if len(logs) <= keep {
		return nil
	}

	sort.Strings(logs)
	for _, name := range logs[:len(logs)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove old log %s: %w", name, err)
		}
	}
	return nil
}

// logDir resolves the per-user log directory for appName.
// Priority order:
//  1. CRIER_LOG_DIR environment variable (if set)
//  2. the platform's standard per-user log location
func logDir(appName string) (string, error) {
	if dir := os.Getenv(EnvLogDir); dir != "" {
		return filepath.Join(dir, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", appName), nil
	case "windows":
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("resolve cache directory: %w", err)
		}
		return filepath.Join(cache, appName, "Logs"), nil
	default:
		state := os.Getenv("XDG_STATE_HOME")
		if state == "" {
			state = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(state, appName, "log"), nil
	}
}
