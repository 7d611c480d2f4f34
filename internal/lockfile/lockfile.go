// Package lockfile guards a BrandOS state directory so only one process owns its session
// database at a time.
//
// The lock is an flock on a file inside the directory; the kernel drops it when the owning
// process exits, so a crash never leaves the directory wedged.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "brandos.lock"

// ErrLocked is matched by errors.Is when another process holds the directory.
var ErrLocked = errors.New("state directory is locked by another process")

// Info describes the process that owns a lock. It is written into the lock file as
// key=value lines.
type Info struct {
	PID       int
	Mode      string
	StartedAt time.Time
}

func (i Info) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", i.PID)
	if i.Mode != "" {
		fmt.Fprintf(&b, "mode=%s\n", i.Mode)
	}
	if !i.StartedAt.IsZero() {
		fmt.Fprintf(&b, "started=%s\n", i.StartedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// String renders the owner for error messages.
func (i Info) String() string {
	if i.PID <= 0 {
		return "unknown process"
	}
	state := "not running, stale lock"
	if isProcessRunning(i.PID) {
		state = "running"
	}
	s := fmt.Sprintf("PID %d (%s)", i.PID, state)
	if i.Mode != "" {
		s += ", mode " + i.Mode
	}
	if !i.StartedAt.IsZero() {
		s += ", started " + i.StartedAt.Format(time.RFC3339)
	}
	return s
}

// ParseInfo reads the key=value lines of a lock file. Unknown keys are ignored.
func ParseInfo(content string) Info {
	var info Info
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil {
				info.PID = pid
			}
		case "mode":
			info.Mode = value
		case "started":
			if ts, err := time.Parse(time.RFC3339, value); err == nil {
				info.StartedAt = ts
			}
		}
	}
	return info
}

// Opts holds lock configuration.
type Opts struct {
	Mode string
}

// Option configures AcquireLock.
type Option func(*Opts)

// WithMode records how the owner runs (for example "api" or "tui") so a conflicting start
// can say what it is competing with.
func WithMode(mode string) Option {
	return func(o *Opts) { o.Mode = mode }
}

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
	info Info
}

// AcquireLock takes the exclusive lock on stateDir, creating the directory if needed. If
// another process holds it the error is a *LockError matching ErrLocked.
func AcquireLock(stateDir string, opts ...Option) (*Lock, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("Acquiring state directory lock", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		slog.Error("Failed to create state directory for lock", "error", err, "state_dir", stateDir)
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC is deferred until the lock is held so a loser never wipes the owner's info.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		slog.Error("Failed to open lock file", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lerr := &LockError{LockPath: lockPath, Cause: err}
		if data, readErr := os.ReadFile(lockPath); readErr == nil {
			lerr.Owner = ParseInfo(string(data))
		}
		slog.Error("State directory already locked", "lock_path", lockPath, "owner", lerr.Owner.String(), "error", err)
		return nil, lerr
	}

	info := Info{PID: os.Getpid(), Mode: cfg.Mode, StartedAt: time.Now()}
	if err := writeInfo(file, info); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		slog.Error("Failed to write lock information", "error", err, "lock_path", lockPath)
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", info.PID, "mode", info.Mode)
	return &Lock{file: file, path: lockPath, info: info}, nil
}

func writeInfo(file *os.File, info Info) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(info.encode()), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Failed to sync lock file", "error", err, "lock_path", file.Name())
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Info returns what was written into the lock file.
func (l *Lock) Info() Info {
	return l.info
}

// Release drops the lock and removes the lock file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	slog.Debug("Releasing state directory lock", "lock_path", l.path)

	// Remove while still holding the lock so a new owner never sees its file deleted.
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove lock file", "error", err, "lock_path", l.path)
	}
	var errs []error
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("failed to unlock %s: %w", l.path, err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s: %w", l.path, err))
	}
	l.file = nil

	if err := errors.Join(errs...); err != nil {
		slog.Error("Failed to release state directory lock", "error", err)
		return err
	}
	slog.Info("Released state directory lock", "lock_path", l.path)
	return nil
}

// LockError reports a directory held by another process.
type LockError struct {
	LockPath string
	Owner    Info
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another BrandOS instance owns this state directory (lock file %s, owner %s).\n"+
		"If that process is gone the lock is stale and can be removed with:\n  rm %s",
		e.LockPath, e.Owner, e.LockPath)
}

func (e *LockError) Unwrap() []error {
	return []error{ErrLocked, e.Cause}
}

// isProcessRunning sends signal 0, which checks for existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
