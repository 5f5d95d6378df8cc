//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/VikingOwl91/fappa/internal/handshake"
)

// Mount destinations inside the new root, relative to it.
const (
	hostProcDir = ".host-proc"
	sysDir      = "sys"
	devNull     = "dev/null"
	oldRootDir  = "old"
)

// hostProcSelfExe reaches the running binary after the old root is gone.
const hostProcSelfExe = "/" + hostProcDir + "/self/exe"

// initializer is the namespace initializer: it builds the mount tree,
// waits for the host to map identities, pivots, and then reaps PID 1.
type initializer struct {
	sys    System
	root   string
	hs     *handshake.Channel
	logger *slog.Logger

	// files are passed to the bootstrapper as descriptors 3 and 4.
	files []*os.File
	// childEnv is the bootstrapper's environment.
	childEnv []string

	exitCode int
}

func (i *initializer) machine() *machine {
	return &machine{
		logger: i.logger,
		steps: map[state]step{
			stateInitializing:    i.initialize,
			stateAwaitingMapping: i.awaitMapping,
			statePivoting:        i.pivot,
			stateReaping:         i.reap,
		},
	}
}

// run walks the initializer states and returns the status to exit with.
func (i *initializer) run() (int, error) {
	defer i.closeFiles()
	if _, err := i.machine().run(stateInitializing); err != nil {
		return ExitSetupFailed, err
	}
	return i.exitCode, nil
}

func (i *initializer) initialize() (state, error) {
	if err := i.nullStdin(); err != nil {
		return 0, err
	}

	// Nothing below may propagate back to the host's mount namespace.
	if err := i.sys.Mount("none", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return 0, err
	}
	if err := i.sys.Mount(i.root, i.root, "", unix.MS_BIND|unix.MS_NOSUID, ""); err != nil {
		return 0, err
	}
	if err := i.sys.Chdir(i.root); err != nil {
		return 0, err
	}

	if err := i.mountDestination(hostProcDir); err != nil {
		return 0, err
	}
	if err := i.sys.Mount("/proc", hostProcDir, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return 0, err
	}

	if err := i.ensureDir(sysDir); err != nil {
		return 0, err
	}
	if err := i.sys.Mount("/sys", sysDir, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return 0, err
	}

	if err := i.ensureDir("dev"); err != nil {
		return 0, err
	}
	if err := i.sys.Touch(devNull); err != nil {
		return 0, err
	}
	if err := i.sys.Mount("/dev/null", devNull, "", unix.MS_BIND, ""); err != nil {
		return 0, err
	}

	return stateAwaitingMapping, nil
}

func (i *initializer) awaitMapping() (state, error) {
	if err := i.hs.Signal(handshake.Ready); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	if err := i.hs.Await(handshake.Resume); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	return statePivoting, nil
}

func (i *initializer) pivot() (state, error) {
	if err := i.sys.Setresuid(0, 0, 0); err != nil {
		return 0, err
	}
	if err := i.sys.Setresgid(0, 0, 0); err != nil {
		return 0, err
	}
	if err := i.sys.Setgroups([]int{0}); err != nil {
		return 0, err
	}

	if err := i.mountDestination(oldRootDir); err != nil {
		return 0, err
	}
	if err := i.sys.PivotRoot(".", oldRootDir); err != nil {
		return 0, err
	}
	if err := i.sys.Unmount(oldRootDir, unix.MNT_DETACH); err != nil {
		return 0, err
	}
	if err := i.sys.Remove(oldRootDir); err != nil {
		return 0, err
	}
	if err := i.sys.Chdir("/"); err != nil {
		return 0, err
	}

	return stateReaping, nil
}

func (i *initializer) reap() (state, error) {
	child, err := i.sys.ForkPID1([]string{hostProcSelfExe, PID1Sentinel}, i.childEnv, i.files)
	if err != nil {
		return 0, err
	}

	// PID 1 holds the only sandbox-side copies from here on.
	i.closeFiles()

	status, err := child.Wait()
	if err != nil {
		i.logger.Warn("waiting for pid 1 failed", "pid", child.Pid(), "error", err)
	}
	i.exitCode = status.MirrorCode()
	i.logger.Debug("pid 1 exited", "pid", child.Pid(), "status", status.String())

	return stateExited, nil
}

func (i *initializer) closeFiles() {
	for _, f := range i.files {
		f.Close()
	}
	i.files = nil
}

func (i *initializer) nullStdin() error {
	null, err := os.Open(os.DevNull)
	if err != nil {
		return err
	}
	defer null.Close()
	return i.sys.Dup3(int(null.Fd()), 0, 0)
}

// mountDestination creates a fresh directory to mount onto. A leftover
// empty directory is replaced; anything else is an error.
func (i *initializer) mountDestination(name string) error {
	if err := i.sys.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		i.logger.Debug("mount destination not removed", "path", name, "error", err)
	}
	if err := i.sys.Mkdir(name, 0o755); err != nil {
		return fmt.Errorf("creating mount destination: %w", err)
	}
	return nil
}

func (i *initializer) ensureDir(name string) error {
	if err := i.sys.Mkdir(name, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}
