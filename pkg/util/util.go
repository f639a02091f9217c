// Package util holds the small helpers shared by the daemon and its commands.
package util

import (
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Valid range of a Unix nice level.
const (
	MinNice = -20
	MaxNice = 19
)

// LogRecover logs a panic instead of letting it end the process. Defer it
// directly as the first statement of a goroutine.
func LogRecover() {
	if r := recover(); r != nil {
		logRecovered(r)
	}
}

// RecoverWith behaves like LogRecover and then hands the recovered error to
// onPanic, so a caller waiting on the goroutine can still be answered. It
// must be deferred directly.
func RecoverWith(onPanic func(err error)) {
	if r := recover(); r != nil {
		onPanic(logRecovered(r))
	}
}

// RecoveredError turns a value returned by recover() into an error carrying a
// stacktrace.
func RecoveredError(r any) error {
	// panics rarely carry a stacktrace of their own
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "recovered error")
	}
	return errors.Errorf("recovered error: %v", r)
}

// BeNice lowers (positive) or raises (negative) the scheduling priority of
// the current process.
func BeNice(priority int) error {
	if priority < MinNice || priority > MaxNice {
		return errors.Errorf("nice level %d is outside %d..%d", priority, MinNice, MaxNice)
	}

	err := syscall.Setpriority(syscall.PRIO_PROCESS, syscall.Getpid(), priority)
	if err != nil {
		return errors.Wrapf(err, "unable to set nice level %d", priority)
	}

	return nil
}

//--------------------------------------------------------------------------------
// private

func logRecovered(r any) error {
	err := RecoveredError(r)
	log.Error().Stack().Err(err).Msg("panic")
	return err
}
