package sandbox

import (
	"errors"
	"fmt"
	"syscall"
)

// Exit statuses of the sandbox's outer process tree.
const (
	// ExitSetupFailed means setup failed before or during namespace and
	// mount configuration.
	ExitSetupFailed = 67
	// ExitUnknownStatus means the reaper could not determine how PID 1
	// ended.
	ExitUnknownStatus = 66
)

var (
	// ErrSetupFailed marks a handshake failure: the sandbox died before or
	// during its privileged sequence.
	ErrSetupFailed = errors.New("sandbox setup failed")
	// ErrNotPID1 is returned by the bootstrapper when it is not the first
	// process of its PID namespace.
	ErrNotPID1 = errors.New("bootstrapper is not pid 1")
	// ErrUnsupported is returned on platforms without Linux namespaces.
	ErrUnsupported = errors.New("sandboxing requires linux namespaces")
)

// ExitStatus is how a sandbox-side process ended.
type ExitStatus struct {
	// Known is false when wait could not report a status.
	Known    bool
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

// Exited returns the status of a process that exited with code.
func Exited(code int) ExitStatus {
	return ExitStatus{Known: true, Code: code}
}

// Killed returns the status of a process terminated by sig.
func Killed(sig syscall.Signal) ExitStatus {
	return ExitStatus{Known: true, Signaled: true, Signal: sig}
}

// MirrorCode is the status the reaper exits with for a child that ended
// with s: the child's own code, 128+signal for a signaled child (the shell
// convention), or ExitUnknownStatus.
func (s ExitStatus) MirrorCode() int {
	switch {
	case !s.Known:
		return ExitUnknownStatus
	case s.Signaled:
		return 128 + int(s.Signal)
	default:
		return s.Code
	}
}

func (s ExitStatus) String() string {
	switch {
	case !s.Known:
		return "unknown"
	case s.Signaled:
		return fmt.Sprintf("signal %d", int(s.Signal))
	default:
		return fmt.Sprintf("exit status %d", s.Code)
	}
}

// ExitError reports a sandbox that ended with a non-zero status.
type ExitError struct {
	Status ExitStatus
}

func (e *ExitError) Error() string {
	return "sandbox " + e.Status.String()
}

// Code is the process exit code a CLI should mirror.
func (e *ExitError) Code() int {
	return e.Status.MirrorCode()
}

// AsExitError returns a *ExitError for a non-zero status and nil otherwise.
func AsExitError(s ExitStatus) error {
	if s.MirrorCode() == 0 {
		return nil
	}
	return &ExitError{Status: s}
}

// IsExitError extracts the exit code from an error chain.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code(), true
	}
	return 0, false
}
