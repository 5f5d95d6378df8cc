package idmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Mapper writes a Mapping into the user namespace of a process that has
// unshared it but not yet been mapped.
type Mapper interface {
	Apply(ctx context.Context, pid int, m Mapping) error
}

// Runner runs an external program and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the program with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// HelperError reports a privileged helper that did not exit cleanly.
type HelperError struct {
	Helper string
	Args   []string
	Status int
	Output string
	Err    error
}

func (e *HelperError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Helper, strings.Join(e.Args, " "))
	if e.Status >= 0 {
		msg += fmt.Sprintf(": exit status %d", e.Status)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *HelperError) Unwrap() error {
	return e.Err
}

// HelperMapper applies mappings with the setuid newuidmap and newgidmap
// helpers, which check the ranges against /etc/subuid and /etc/subgid.
type HelperMapper struct {
	UIDHelper string
	GIDHelper string
	Run       Runner
	Logger    *slog.Logger
}

// NewHelperMapper returns a mapper using the given helper programs.
// Empty names default to newuidmap and newgidmap from PATH.
func NewHelperMapper(uidHelper, gidHelper string, logger *slog.Logger) *HelperMapper {
	if uidHelper == "" {
		uidHelper = "newuidmap"
	}
	if gidHelper == "" {
		gidHelper = "newgidmap"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HelperMapper{
		UIDHelper: uidHelper,
		GIDHelper: gidHelper,
		Run:       ExecRunner,
		Logger:    logger,
	}
}

// Apply maps UIDs, then GIDs. A failure is never retried: a half-mapped
// namespace cannot be mapped again.
func (h *HelperMapper) Apply(ctx context.Context, pid int, m Mapping) error {
	if err := h.run(ctx, h.UIDHelper, HelperArgs(pid, m.UIDs)); err != nil {
		return fmt.Errorf("mapping uids: %w", err)
	}
	if err := h.run(ctx, h.GIDHelper, HelperArgs(pid, m.GIDs)); err != nil {
		return fmt.Errorf("mapping gids: %w", err)
	}
	return nil
}

func (h *HelperMapper) run(ctx context.Context, helper string, args []string) error {
	run := h.Run
	if run == nil {
		run = ExecRunner
	}
	h.Logger.Debug("running id mapping helper", "helper", helper, "args", args)

	out, err := run(ctx, helper, args...)
	if err == nil {
		return nil
	}
	herr := &HelperError{Helper: helper, Args: args, Status: -1, Output: string(out), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		herr.Status = exitErr.ExitCode()
	}
	return herr
}
