//go:build !linux

package sandbox

import "os"

// SelfLauncher re-executes the running binary as the namespace initializer.
type SelfLauncher struct {
	Path string
}

func (SelfLauncher) Launch(_ ExecConfig, _, _ *os.File) (Process, error) {
	return nil, ErrUnsupported
}
