package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Sentinel first arguments that select a sandbox-side role of the binary.
const (
	InitSentinel = "__sandbox_init__"
	PID1Sentinel = "__sandbox_pid1__"
)

// configEnv carries the ExecConfig to each re-exec.
const configEnv = "_FAPPA_SANDBOX_CONFIG"

// Descriptors the handshake pipe ends are inherited on.
const (
	recvFD = 3
	sendFD = 4
)

// ExecConfig is the JSON payload passed via the _FAPPA_SANDBOX_CONFIG env var.
type ExecConfig struct {
	Root         string   `json:"root"`
	Init         string   `json:"init"`
	Env          []string `json:"env"`
	EnvAllowlist []string `json:"env_allowlist"`
	LogLevel     string   `json:"log_level,omitempty"`
	LogFormat    string   `json:"log_format,omitempty"`
}

func (c ExecConfig) environ() ([]string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling sandbox config: %w", err)
	}
	return []string{configEnv + "=" + string(data)}, nil
}

// LoadExecConfig reads the ExecConfig of the current re-exec.
func LoadExecConfig() (ExecConfig, error) {
	data := os.Getenv(configEnv)
	if data == "" {
		return ExecConfig{}, fmt.Errorf("%s environment variable not set", configEnv)
	}
	var cfg ExecConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return ExecConfig{}, fmt.Errorf("parsing %s: %w", configEnv, err)
	}
	if cfg.Root == "" {
		return ExecConfig{}, fmt.Errorf("%s: root is empty", configEnv)
	}
	if cfg.Init == "" {
		cfg.Init = "/bin/finit"
	}
	return cfg, nil
}

// BuildInitializerCmd prepares the re-exec of selfPath as the namespace
// initializer. recv and send become its descriptors 3 and 4.
func BuildInitializerCmd(selfPath string, cfg ExecConfig, recv, send *os.File) (*exec.Cmd, error) {
	env, err := cfg.environ()
	if err != nil {
		return nil, err
	}

	cmd := &exec.Cmd{
		Path:       selfPath,
		Args:       []string{selfPath, InitSentinel},
		Env:        env,
		Stdin:      nil,
		Stdout:     os.Stderr,
		Stderr:     os.Stderr,
		ExtraFiles: []*os.File{recv, send},
	}

	applySysProcAttr(cmd)

	return cmd, nil
}
