package rootfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
)

const (
	// InitPath is where the init program lives inside every root.
	InitPath = "/bin/finit"
	// DefaultNameserver is written to the root's resolv.conf.
	DefaultNameserver = "127.0.0.53"
)

// Inject copies the init binary into root and writes a static resolver
// configuration. Both files are replaced by rename, so a sandbox already
// running the previous init keeps its copy.
func Inject(root, initBinary, nameserver string) error {
	if nameserver == "" {
		nameserver = DefaultNameserver
	}

	dst := filepath.Join(root, InitPath)
	if err := installInit(initBinary, dst); err != nil {
		return fmt.Errorf("injecting init %s: %w", initBinary, err)
	}

	resolv := filepath.Join(root, "etc", "resolv.conf")
	// An image may ship resolv.conf as a symlink out of the root.
	if err := os.Remove(resolv); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", resolv, err)
	}
	if err := atomicwriter.WriteFile(resolv, []byte("nameserver "+nameserver), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", resolv, err)
	}
	return nil
}

// installInit places a copy of src at dst by way of a temporary file in
// dst's directory. Writing dst in place fails with ETXTBSY while another
// sandbox of the same root executes it.
func installInit(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".finit-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := cloneOrCopy(tmp, in); err != nil {
		return err
	}
	// CreateTemp uses 0600 and the copy does not carry a mode.
	if err := tmp.Chmod(0755); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// cloneOrCopy reflinks in to out where the filesystem supports it and
// copies the bytes otherwise.
func cloneOrCopy(out, in *os.File) error {
	if err := reflink(out, in); err == nil {
		return nil
	}
	_, err := io.Copy(out, in)
	return err
}
