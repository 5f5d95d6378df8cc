//go:build linux

package sandbox

import (
	"fmt"
	"os"
)

// SelfLauncher re-executes the running binary as the namespace initializer.
type SelfLauncher struct {
	// Path defaults to /proc/self/exe.
	Path string
}

func (l SelfLauncher) Launch(cfg ExecConfig, recv, send *os.File) (Process, error) {
	self := l.Path
	if self == "" {
		self = "/proc/self/exe"
	}
	cmd, err := BuildInitializerCmd(self, cfg, recv, send)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("re-exec %s: %w", self, err)
	}
	return &cmdProcess{cmd: cmd}, nil
}
