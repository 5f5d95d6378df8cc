package sandbox

import (
	"log/slog"
	"os"

	"github.com/VikingOwl91/fappa/internal/logging"
)

// roleLogger builds the stderr logger of a sandbox-side role.
func roleLogger(cfg ExecConfig, role string) *slog.Logger {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat).With("role", role)
}
