package single

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/process"
)

// ErrAlreadyRunning means another live supervisor instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Acquire takes the single-instance lock at path, recording this process's
// identity. A lock whose recorded process no longer exists is considered
// stale and self-healed. Meant to be a fatal startup check.
func Acquire(path string) error {
	if raw, err := os.ReadFile(path); err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if perr == nil && pid > 0 && pid != os.Getpid() {
			alive, lerr := process.PidExists(int32(pid))
			if lerr == nil && alive {
				return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
		}
		// Stale or unreadable lock: remove and recreate.
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// Release removes the lock. Idempotent.
func Release(path string) {
	_ = os.Remove(path)
}
