package sandbox

import "os"

// System is the set of process-wide operations the sandbox-side roles
// perform. Every call changes the calling process irreversibly.
type System interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
	PivotRoot(newRoot, putOld string) error
	Chdir(dir string) error
	Mkdir(path string, perm os.FileMode) error
	Remove(path string) error
	Chmod(path string, mode os.FileMode) error
	// Touch creates an empty regular file if path does not exist.
	Touch(path string) error

	Setresuid(ruid, euid, suid int) error
	Setresgid(rgid, egid, sgid int) error
	Setgroups(gids []int) error

	Getpid() int
	Dup(fd int) (int, error)
	Dup3(oldFD, newFD, flags int) error

	// Exec replaces the process image. It only returns on failure.
	Exec(path string, argv, env []string) error
	// ForkPID1 starts argv as the first process of a new PID namespace,
	// passing files as descriptors 3 onward.
	ForkPID1(argv, env []string, files []*os.File) (Process, error)
}

// Process is a started sandbox-side process.
type Process interface {
	Pid() int
	// Wait blocks until the process ends. A non-zero exit is a status, not
	// an error.
	Wait() (ExitStatus, error)
}
