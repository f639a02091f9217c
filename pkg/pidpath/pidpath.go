// Package pidpath manages the PID file that tells CLI invocations whether a
// canvaspipe daemon is already serving.
package pidpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned when the PID file names a live process other
// than the caller.
var ErrAlreadyRunning = errors.New("another process is already running")

// recheckAfter is how long a read of the PID file stays fresh.
const recheckAfter = time.Second

// PidPath is the type for managing a PID file.
type PidPath struct {
	pidpath   string
	perm      fs.FileMode
	checkedAt time.Time
	pid       *int
}

// UnknownPID indicates the PID read from the file wasn't located as a running
// process.
const UnknownPID = -1

// NewPidPath manages a process ID file to coordinate whether a process is
// already running.
func NewPidPath(pathname string, perm fs.FileMode) *PidPath {
	return &PidPath{pidpath: pathname, perm: perm}
}

// String provides the path and other PID info.
func (pp *PidPath) String() string {
	var key string
	if pp.IsOurs() {
		key = "ours"
	} else {
		key = "other"
	}

	return fmt.Sprintf("%s %s=%v", pp.pidpath, key, pp.Getpid())
}

// CheckAndSet evaluates if the process is currently running and, if not, sets
// the current process ID into the file.
func (pp *PidPath) CheckAndSet() error {
	err := pp.Check()
	if err != nil {
		return err
	}

	pid := os.Getpid()

	err = os.MkdirAll(filepath.Dir(pp.pidpath), 0o755)
	if err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", pp.pidpath, err)
	}

	err = os.WriteFile(pp.pidpath, []byte(fmt.Sprintln(pid)), pp.perm)
	if err != nil {
		return fmt.Errorf("unable to write to %s: %w", pp.pidpath, err)
	}

	// wait until _after_ the write succeeds before we declare it "ours"
	pp.pid = &pid
	return nil
}

// Check will determine the state of the process. A `nil` returned indicates no
// other process was found active.
func (pp *PidPath) Check() error {
	return pp.check(true)
}

// IsRunning determines if the pidpath indicates that its process is in the
// process listing (see Getpid's note).
func (pp *PidPath) IsRunning() bool {
	return pp.Getpid() != UnknownPID
}

// IsOurs determines if the pidpath indicates that its process is the currently
// executing one (the caller) of this function.
func (pp *PidPath) IsOurs() bool {
	return pp.Getpid() == os.Getpid()
}

// Getpid retrieves the process ID from the file.
func (pp *PidPath) Getpid() int {
	pp.check(false)

	if pp.pid == nil {
		return UnknownPID
	}

	return *pp.pid
}

// Path is the location of the PID file.
func (pp *PidPath) Path() string {
	return pp.pidpath
}

// Release will remove the pidpath if it's owned by the current process (i.e.
// this is safe to call if the pidpath is being managed by another process--the
// file will NOT be removed).
func (pp *PidPath) Release() error {
	if pp.IsOurs() {
		pp.checkedAt = time.Time{}
		pp.pid = nil
		return os.Remove(pp.pidpath)
	}

	return nil
}

//--------------------------------------------------------------------------------
// private

func (pp *PidPath) check(forced bool) error {
	if !forced && time.Since(pp.checkedAt) < recheckAfter {
		return nil
	}

	pp.checkedAt = time.Now()

	pidContent, err := os.ReadFile(pp.pidpath)
	if err != nil {
		if os.IsNotExist(err) {
			pp.pid = nil
			return nil
		}
		return fmt.Errorf("unable to read %s: %w", pp.pidpath, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidContent)))
	if err != nil {
		pp.pid = nil
		return fmt.Errorf("unable to parse contents of %s: %w", pp.pidpath, err)
	}

	pp.pid = &pid

	if pid == os.Getpid() {
		// just ourselves, probably running an IPC command
		return nil
	}

	err = syscall.Kill(pid, 0)
	if err == nil || errors.Is(err, syscall.EPERM) {
		// if EPERM, process is owned by another user
		return fmt.Errorf("%w: %d", ErrAlreadyRunning, pid)
	}

	if !errors.Is(err, syscall.ESRCH) {
		// can't determine, so assume it is still running
		return fmt.Errorf("unable to check if process %d is still running: %w", pid, err)
	}

	// stale file: process is no longer running
	pp.pid = nil
	return nil
}
