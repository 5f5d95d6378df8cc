package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/VikingOwl91/fappa/internal/handshake"
	"github.com/VikingOwl91/fappa/internal/idmap"
	"github.com/VikingOwl91/fappa/internal/rootfs"
	"github.com/VikingOwl91/fappa/internal/supply"
)

// RootfsCache resolves a distribution to its unpacked root directory.
type RootfsCache interface {
	Ensure(distribution string) (string, error)
}

// Launcher starts the namespace initializer for cfg. recv and send are the
// sandbox ends of the handshake; the launched process must hold its own
// copies of them.
type Launcher interface {
	Launch(cfg ExecConfig, recv, send *os.File) (Process, error)
}

// Config wires a Coordinator.
type Config struct {
	Cache RootfsCache
	// Init is verified and copied into every root before launch.
	Init       supply.Artifact
	Nameserver string

	Mapper  idmap.Mapper
	Mapping idmap.Mapping

	// Launcher defaults to a re-exec of the running binary.
	Launcher Launcher

	// Env is filtered by EnvAllowlist for init. Defaults to os.Environ().
	Env          []string
	EnvAllowlist []string
	LogLevel     string
	LogFormat    string

	// Observer sees every handshake token the host sends or receives.
	Observer handshake.Observer
	Logger   *slog.Logger
}

// Coordinator prepares sandboxes on the host.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	// mu serializes the cache step.
	mu sync.Mutex
}

// New returns a Coordinator for cfg.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Cache == nil {
		return nil, errors.New("coordinator: rootfs cache is required")
	}
	if cfg.Mapper == nil {
		return nil, errors.New("coordinator: id mapper is required")
	}
	if len(cfg.Mapping.UIDs) == 0 || len(cfg.Mapping.GIDs) == 0 {
		return nil, errors.New("coordinator: id mapping is empty")
	}
	if cfg.Launcher == nil {
		cfg.Launcher = SelfLauncher{}
	}
	if cfg.Env == nil {
		cfg.Env = os.Environ()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{cfg: cfg, logger: logger}, nil
}

// Handle is a sandbox whose initializer has resumed past the handshake.
// Recv and Send are the host's ends of the channel init inherits.
type Handle struct {
	ID           uuid.UUID
	Pid          int
	Distribution string
	Root         string
	Recv         *os.File
	Send         *os.File

	proc Process
}

// Wait blocks until the sandbox's outer process ends. A non-zero status is
// returned as *ExitError.
func (h *Handle) Wait() (ExitStatus, error) {
	status, err := h.proc.Wait()
	if err != nil {
		return status, err
	}
	return status, AsExitError(status)
}

// Close closes the host's ends of the channel.
func (h *Handle) Close() error {
	return errors.Join(h.Recv.Close(), h.Send.Close())
}

// Prepare turns distribution's root into a running sandbox. It returns once
// the identity mapping is in place and the sandbox was told to resume; the
// rest of the bootstrap happens inside the sandbox.
//
// Filesystem errors are returned before any process is started. ctx bounds
// the mapping helpers only; the handshake itself has no timeout.
func (c *Coordinator) Prepare(ctx context.Context, distribution string) (*Handle, error) {
	r := &prepareRun{
		c:            c,
		ctx:          ctx,
		distribution: distribution,
		logger:       c.logger.With("distribution", distribution),
	}
	if _, err := r.machine().run(stateHost); err != nil {
		return nil, r.fail(err)
	}

	h := &Handle{
		ID:           uuid.New(),
		Pid:          r.proc.Pid(),
		Distribution: distribution,
		Root:         r.root,
		Recv:         r.pipes.HostRecv,
		Send:         r.pipes.HostSend,
		proc:         r.proc,
	}
	r.logger.Info("sandbox resumed", "sandbox", h.ID.String(), "pid", h.Pid)
	return h, nil
}

// prepareRun is one Prepare call walking the host states:
//
//	Host → AwaitingMapping → Resumed
type prepareRun struct {
	c            *Coordinator
	ctx          context.Context
	distribution string
	logger       *slog.Logger

	root  string
	pipes *handshake.Pipes
	proc  Process
	host  *handshake.Channel
}

func (r *prepareRun) machine() *machine {
	return &machine{
		logger: r.logger,
		steps: map[state]step{
			stateHost:            r.launch,
			stateAwaitingMapping: r.mapIdentities,
		},
	}
}

// launch prepares the root, starts the initializer and waits until its
// namespaces exist.
func (r *prepareRun) launch() (state, error) {
	c := r.c
	root, err := c.ensureRoot(r.distribution)
	if err != nil {
		return 0, err
	}
	r.root = root

	initBin, err := c.cfg.Init.Verify()
	if err != nil {
		return 0, fmt.Errorf("verifying init binary: %w", err)
	}
	if err := rootfs.Inject(root, initBin.Path, c.cfg.Nameserver); err != nil {
		return 0, err
	}
	r.logger.Debug("root prepared", "root", root, "init", initBin.Path)

	pipes, err := handshake.NewPipes()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	r.pipes = pipes

	proc, err := c.cfg.Launcher.Launch(c.execConfig(root), pipes.SandboxRecv, pipes.SandboxSend)
	if err != nil {
		return 0, fmt.Errorf("starting namespace initializer: %w", err)
	}
	r.proc = proc
	if err := pipes.CloseSandboxEnds(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	r.logger.Debug("namespace initializer started", "pid", proc.Pid())

	r.host = pipes.Host(handshake.WithObserver(c.cfg.Observer))
	if err := r.host.Await(handshake.Ready); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	return stateAwaitingMapping, nil
}

// mapIdentities writes the sandbox's id maps and lets it resume.
func (r *prepareRun) mapIdentities() (state, error) {
	pid := r.proc.Pid()
	if err := r.c.cfg.Mapper.Apply(r.ctx, pid, r.c.cfg.Mapping); err != nil {
		return 0, fmt.Errorf("mapping identities of pid %d: %w", pid, err)
	}
	if err := r.host.Signal(handshake.Resume); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	return stateResumed, nil
}

// fail releases what the run acquired. A started initializer is reaped.
func (r *prepareRun) fail(cause error) error {
	switch {
	case r.proc != nil:
		return r.c.abort(r.logger, r.pipes, r.proc, cause)
	case r.pipes != nil:
		r.pipes.Close()
	}
	return cause
}

func (c *Coordinator) ensureRoot(distribution string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Cache.Ensure(distribution)
}

func (c *Coordinator) execConfig(root string) ExecConfig {
	return ExecConfig{
		Root:         root,
		Init:         rootfs.InitPath,
		Env:          c.cfg.Env,
		EnvAllowlist: c.cfg.EnvAllowlist,
		LogLevel:     c.cfg.LogLevel,
		LogFormat:    c.cfg.LogFormat,
	}
}

// abort closes the host's ends so a sandbox still waiting on the handshake
// sees EOF, then reaps it.
func (c *Coordinator) abort(logger *slog.Logger, pipes *handshake.Pipes, proc Process, cause error) error {
	pipes.Close()
	status, err := proc.Wait()
	if err != nil {
		return errors.Join(cause, fmt.Errorf("reaping namespace initializer: %w", err))
	}
	logger.Warn("sandbox setup aborted", "pid", proc.Pid(), "status", status.String(), "error", cause)
	return cause
}
