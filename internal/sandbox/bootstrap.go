//go:build linux

package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

var worldWritableDirs = []string{"/tmp", "/var/tmp"}

const hostProcMount = "/" + hostProcDir

// bootstrapper runs as PID 1 of the sandbox and replaces itself with init.
type bootstrapper struct {
	sys      System
	initPath string
	env      []string
	logger   *slog.Logger
}

func (b *bootstrapper) machine() *machine {
	return &machine{
		logger: b.logger,
		steps: map[state]step{
			stateBootstrapping: b.bootstrap,
		},
	}
}

func (b *bootstrapper) run() error {
	if _, err := b.machine().run(stateBootstrapping); err != nil {
		return err
	}
	return fmt.Errorf("%w: exec of %s returned", ErrSetupFailed, b.initPath)
}

func (b *bootstrapper) bootstrap() (state, error) {
	if pid := b.sys.Getpid(); pid != 1 {
		return 0, fmt.Errorf("%w: running as pid %d", ErrNotPID1, pid)
	}

	for _, dir := range worldWritableDirs {
		if err := b.sys.Chmod(dir, os.ModeSticky|0o777); err != nil {
			return 0, err
		}
	}

	if err := b.sys.Mount("proc", "/proc", "proc", unix.MS_NOSUID, ""); err != nil {
		return 0, err
	}
	if err := b.sys.Unmount(hostProcMount, unix.MNT_DETACH); err != nil {
		return 0, err
	}
	if err := b.sys.Remove(hostProcMount); err != nil {
		return 0, err
	}

	if err := b.sys.Mount("/", "/", "", unix.MS_BIND|unix.MS_NOSUID|unix.MS_REMOUNT, ""); err != nil {
		return 0, err
	}

	recv, err := b.sys.Dup(recvFD)
	if err != nil {
		return 0, err
	}
	send, err := b.sys.Dup(sendFD)
	if err != nil {
		return 0, err
	}

	argv := []string{filepath.Base(b.initPath), strconv.Itoa(recv), strconv.Itoa(send)}
	b.logger.Debug("executing init", "path", b.initPath, "argv", argv)
	if err := b.sys.Exec(b.initPath, argv, b.env); err != nil {
		return 0, err
	}
	return stateExeced, nil
}
