//go:build linux

package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// fakeSystem records every call as one line and fails the calls listed in
// failOn (matched by prefix).
type fakeSystem struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error

	// existing paths for Mkdir/Remove.
	dirs map[string]bool
	pid  int

	child      *fakeProcess
	forkedArgv []string
	forkedEnv  []string
	forkedFDs  int

	execPath string
	execArgv []string
	execEnv  []string

	nextFD int
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		failOn: map[string]error{},
		dirs:   map[string]bool{},
		pid:    1,
		child:  &fakeProcess{pid: 2, status: Exited(0)},
		nextFD: 10,
	}
}

func (f *fakeSystem) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, call)
	for prefix, err := range f.failOn {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (f *fakeSystem) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSystem) Mount(source, target, fstype string, flags uintptr, data string) error {
	return f.record("mount %s %s %s %#x", source, target, fstype, flags)
}

func (f *fakeSystem) Unmount(target string, flags int) error {
	return f.record("umount %s %#x", target, flags)
}

func (f *fakeSystem) PivotRoot(newRoot, putOld string) error {
	return f.record("pivot_root %s %s", newRoot, putOld)
}

func (f *fakeSystem) Chdir(dir string) error { return f.record("chdir %s", dir) }

func (f *fakeSystem) Mkdir(path string, perm os.FileMode) error {
	if err := f.record("mkdir %s", path); err != nil {
		return err
	}
	if f.dirs[path] {
		return &os.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	f.dirs[path] = true
	return nil
}

func (f *fakeSystem) Remove(path string) error {
	if err := f.record("remove %s", path); err != nil {
		return err
	}
	if !f.dirs[path] {
		return &os.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(f.dirs, path)
	return nil
}

func (f *fakeSystem) Chmod(path string, mode os.FileMode) error {
	return f.record("chmod %s %v", path, mode)
}

func (f *fakeSystem) Touch(path string) error { return f.record("touch %s", path) }

func (f *fakeSystem) Setresuid(ruid, euid, suid int) error {
	return f.record("setresuid %d %d %d", ruid, euid, suid)
}

func (f *fakeSystem) Setresgid(rgid, egid, sgid int) error {
	return f.record("setresgid %d %d %d", rgid, egid, sgid)
}

func (f *fakeSystem) Setgroups(gids []int) error { return f.record("setgroups %v", gids) }

func (f *fakeSystem) Getpid() int {
	f.record("getpid")
	return f.pid
}

func (f *fakeSystem) Dup(fd int) (int, error) {
	if err := f.record("dup %d", fd); err != nil {
		return -1, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	nfd := f.nextFD
	f.nextFD++
	return nfd, nil
}

func (f *fakeSystem) Dup3(oldFD, newFD, flags int) error {
	return f.record("dup3 onto %d", newFD)
}

func (f *fakeSystem) Exec(path string, argv, env []string) error {
	if err := f.record("exec %s", path); err != nil {
		return err
	}
	f.execPath, f.execArgv, f.execEnv = path, argv, env
	return nil
}

func (f *fakeSystem) ForkPID1(argv, env []string, files []*os.File) (Process, error) {
	if err := f.record("fork %s", strings.Join(argv, " ")); err != nil {
		return nil, err
	}
	f.forkedArgv, f.forkedEnv, f.forkedFDs = argv, env, len(files)
	return f.child, nil
}

// indexOf returns the position of the first call starting with prefix.
func indexOf(calls []string, prefix string) int {
	for i, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

type fakeProcess struct {
	pid    int
	status ExitStatus
	err    error
	// done, when set, is waited on before Wait returns.
	done chan struct{}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() (ExitStatus, error) {
	if p.done != nil {
		<-p.done
	}
	return p.status, p.err
}
