//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// unixSystem performs System calls against the running kernel.
type unixSystem struct{}

func (unixSystem) Mount(source, target, fstype string, flags uintptr, data string) error {
	if err := unix.Mount(source, target, fstype, flags, data); err != nil {
		return &os.PathError{Op: "mount", Path: target, Err: err}
	}
	return nil
}

func (unixSystem) Unmount(target string, flags int) error {
	if err := unix.Unmount(target, flags); err != nil {
		return &os.PathError{Op: "umount2", Path: target, Err: err}
	}
	return nil
}

func (unixSystem) PivotRoot(newRoot, putOld string) error {
	if err := unix.PivotRoot(newRoot, putOld); err != nil {
		return &os.LinkError{Op: "pivot_root", Old: newRoot, New: putOld, Err: err}
	}
	return nil
}

func (unixSystem) Chdir(dir string) error                    { return os.Chdir(dir) }
func (unixSystem) Mkdir(path string, perm os.FileMode) error { return os.Mkdir(path, perm) }
func (unixSystem) Remove(path string) error                  { return os.Remove(path) }
func (unixSystem) Chmod(path string, mode os.FileMode) error { return os.Chmod(path, mode) }

func (unixSystem) Touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (unixSystem) Setresuid(ruid, euid, suid int) error {
	if err := unix.Setresuid(ruid, euid, suid); err != nil {
		return fmt.Errorf("setresuid(%d, %d, %d): %w", ruid, euid, suid, err)
	}
	return nil
}

func (unixSystem) Setresgid(rgid, egid, sgid int) error {
	if err := unix.Setresgid(rgid, egid, sgid); err != nil {
		return fmt.Errorf("setresgid(%d, %d, %d): %w", rgid, egid, sgid, err)
	}
	return nil
}

// Setgroups applies to every thread of the process. unix.Setgroups only
// changes the calling thread, and a later fork may run on any of them.
func (unixSystem) Setgroups(gids []int) error {
	if err := syscall.Setgroups(gids); err != nil {
		return fmt.Errorf("setgroups(%v): %w", gids, err)
	}
	return nil
}

func (unixSystem) Getpid() int { return unix.Getpid() }

func (unixSystem) Dup(fd int) (int, error) {
	nfd, err := unix.Dup(fd)
	if err != nil {
		return -1, fmt.Errorf("dup(%d): %w", fd, err)
	}
	return nfd, nil
}

func (unixSystem) Dup3(oldFD, newFD, flags int) error {
	if err := unix.Dup3(oldFD, newFD, flags); err != nil {
		return fmt.Errorf("dup3(%d, %d): %w", oldFD, newFD, err)
	}
	return nil
}

func (unixSystem) Exec(path string, argv, env []string) error {
	if err := unix.Exec(path, argv, env); err != nil {
		return &os.PathError{Op: "exec", Path: path, Err: err}
	}
	return nil
}

func (unixSystem) ForkPID1(argv, env []string, files []*os.File) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("fork: empty argv")
	}
	cmd := pid1Cmd(argv, env, files)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("fork into new pid namespace: %w", err)
	}
	return &cmdProcess{cmd: cmd}, nil
}

// pid1Cmd prepares argv to run as the first process of a new PID namespace.
func pid1Cmd(argv, env []string, files []*os.File) *exec.Cmd {
	return &exec.Cmd{
		Path:        argv[0],
		Args:        argv,
		Env:         env,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		ExtraFiles:  files,
		SysProcAttr: &syscall.SysProcAttr{Cloneflags: unix.CLONE_NEWPID},
	}
}

// cmdProcess adapts a started exec.Cmd to Process.
type cmdProcess struct {
	cmd *exec.Cmd
}

func (p *cmdProcess) Pid() int { return p.cmd.Process.Pid }

func (p *cmdProcess) Wait() (ExitStatus, error) {
	err := p.cmd.Wait()
	state := p.cmd.ProcessState
	if state == nil {
		return ExitStatus{}, fmt.Errorf("waiting for pid %d: %w", p.Pid(), err)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Process ended but a copy goroutine failed; the status still stands.
		return statusOf(state), err
	}
	return statusOf(state), nil
}

func statusOf(state *os.ProcessState) ExitStatus {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{}
	}
	switch {
	case ws.Exited():
		return Exited(ws.ExitStatus())
	case ws.Signaled():
		return Killed(ws.Signal())
	default:
		return ExitStatus{}
	}
}
