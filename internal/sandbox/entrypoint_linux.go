//go:build linux

package sandbox

import (
	"os"

	"github.com/VikingOwl91/fappa/internal/handshake"
)

// RunInitializer is called when the __sandbox_init__ sentinel is detected.
// It returns the status the process must exit with: PID 1's mirrored
// status on success, ExitSetupFailed alongside any error.
func RunInitializer() (int, error) {
	cfg, err := LoadExecConfig()
	if err != nil {
		return ExitSetupFailed, err
	}
	env, err := cfg.environ()
	if err != nil {
		return ExitSetupFailed, err
	}

	recv := os.NewFile(recvFD, "handshake-recv")
	send := os.NewFile(sendFD, "handshake-send")

	i := &initializer{
		sys:      unixSystem{},
		root:     cfg.Root,
		hs:       handshake.New("sandbox", recv, send),
		logger:   roleLogger(cfg, "initializer"),
		files:    []*os.File{recv, send},
		childEnv: env,
	}
	return i.run()
}

// RunBootstrapper is called when the __sandbox_pid1__ sentinel is detected.
// On success it does not return: init replaces the process.
func RunBootstrapper() error {
	cfg, err := LoadExecConfig()
	if err != nil {
		return err
	}

	b := &bootstrapper{
		sys:      unixSystem{},
		initPath: cfg.Init,
		env:      FilterEnv(cfg.Env, cfg.EnvAllowlist),
		logger:   roleLogger(cfg, "bootstrapper"),
	}
	return b.run()
}
