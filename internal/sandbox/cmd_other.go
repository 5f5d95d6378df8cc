//go:build !linux

package sandbox

import "os/exec"

func applySysProcAttr(_ *exec.Cmd) {
	// No namespaces outside Linux; Launch fails before starting the command.
}
