//go:build linux

package sandbox

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// initializerNamespaces are unshared in the child between fork and exec.
const initializerNamespaces = unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS

// initializerCaps are raised as ambient capabilities so the initializer
// keeps them across exec while its user namespace is still unmapped.
var initializerCaps = []uintptr{
	unix.CAP_SYS_ADMIN,
	unix.CAP_SETUID,
	unix.CAP_SETGID,
	unix.CAP_SYS_CHROOT,
	unix.CAP_DAC_OVERRIDE,
	unix.CAP_FOWNER,
	unix.CAP_CHOWN,
	unix.CAP_MKNOD,
}

func applySysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Unshareflags: initializerNamespaces,
		AmbientCaps:  initializerCaps,
	}
}
