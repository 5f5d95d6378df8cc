//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestBootstrapper(sys *fakeSystem) *bootstrapper {
	sys.dirs["/.host-proc"] = true
	return &bootstrapper{
		sys:      sys,
		initPath: "/bin/finit",
		env:      []string{"PATH=/usr/bin:/bin"},
		logger:   discardLogger(),
	}
}

func TestBootstrapper_Sequence(t *testing.T) {
	sys := newFakeSystem()
	b := newTestBootstrapper(sys)

	end, err := b.machine().run(stateBootstrapping)
	require.NoError(t, err)
	assert.Equal(t, stateExeced, end)

	want := []string{
		"getpid",
		"chmod /tmp " + (os.ModeSticky | 0o777).String(),
		"chmod /var/tmp " + (os.ModeSticky | 0o777).String(),
		fmt.Sprintf("mount proc /proc proc %#x", unix.MS_NOSUID),
		fmt.Sprintf("umount /.host-proc %#x", unix.MNT_DETACH),
		"remove /.host-proc",
		fmt.Sprintf("mount / /  %#x", unix.MS_BIND|unix.MS_NOSUID|unix.MS_REMOUNT),
		"dup 3",
		"dup 4",
		"exec /bin/finit",
	}
	assert.Equal(t, want, sys.Calls())
}

func TestBootstrapper_ExecArgs(t *testing.T) {
	sys := newFakeSystem()
	sys.nextFD = 5

	_, err := newTestBootstrapper(sys).machine().run(stateBootstrapping)
	require.NoError(t, err)

	assert.Equal(t, "/bin/finit", sys.execPath)
	assert.Equal(t, []string{"finit", "5", "6"}, sys.execArgv)
	assert.Equal(t, []string{"PATH=/usr/bin:/bin"}, sys.execEnv)
}

func TestBootstrapper_NotPID1(t *testing.T) {
	sys := newFakeSystem()
	sys.pid = 4242

	err := newTestBootstrapper(sys).run()
	require.ErrorIs(t, err, ErrNotPID1)
	assert.Contains(t, err.Error(), "4242")
	assert.Equal(t, []string{"getpid"}, sys.Calls(), "nothing may happen outside pid 1")
}

func TestBootstrapper_ExecFailureIsFatal(t *testing.T) {
	sys := newFakeSystem()
	sys.failOn["exec"] = syscall.ENOENT

	err := newTestBootstrapper(sys).run()
	require.ErrorIs(t, err, syscall.ENOENT)
}

func TestBootstrapper_RunReportsReturnedExec(t *testing.T) {
	// A real exec never returns; the fake does.
	err := newTestBootstrapper(newFakeSystem()).run()
	require.ErrorIs(t, err, ErrSetupFailed)
}

func TestBootstrapper_ProcMountFailure(t *testing.T) {
	sys := newFakeSystem()
	sys.failOn["mount proc"] = syscall.EPERM

	err := newTestBootstrapper(sys).run()
	require.ErrorIs(t, err, syscall.EPERM)
	assert.Equal(t, -1, indexOf(sys.Calls(), "umount"))
	assert.Equal(t, -1, indexOf(sys.Calls(), "exec"))
}
