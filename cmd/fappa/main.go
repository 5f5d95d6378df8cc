package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/VikingOwl91/fappa/internal/config"
	"github.com/VikingOwl91/fappa/internal/logging"
	"github.com/VikingOwl91/fappa/internal/sandbox"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const usage = `usage: fappa [--config path] <command> [args]

commands:
  prepare [--all] [distribution...]  boot a sandbox for each distribution
  releases                           list the selected releases
  explain                            print the effective configuration
  version                            print version and exit
`

func main() {
	// Detect re-exec sentinels BEFORE flag parsing
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case sandbox.InitSentinel:
			code, err := sandbox.RunInitializer()
			if err != nil {
				fmt.Fprintf(os.Stderr, "sandbox: %v\n", err)
			}
			os.Exit(code)
		case sandbox.PID1Sentinel:
			err := sandbox.RunBootstrapper()
			fmt.Fprintf(os.Stderr, "sandbox: %v\n", err)
			os.Exit(sandbox.ExitSetupFailed)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(stderr, "error: determining home directory: %v\n", err)
		return 1
	}
	defaultConfig := filepath.Join(home, ".fappa", "config.yaml")
	defaultCache := filepath.Join(home, ".fappa", "cache")

	flags := pflag.NewFlagSet("fappa", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := flags.String("config", defaultConfig, "path to config file")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion || flags.Arg(0) == "version" {
		fmt.Fprintf(stdout, "fappa %s (%s, %s)\n", version, commit, date)
		return 0
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	cfg, err := config.LoadOrDefault(*configPath, flags.Changed("config"), defaultCache)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(stderr, cfg.LogLevel, cfg.LogFormat),
		stdout: stdout,
		stderr: stderr,
	}

	command, rest := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "prepare":
		err = a.prepare(ctx, rest)
	case "releases":
		err = a.releases(rest)
	case "explain":
		err = a.explain(rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		flags.Usage()
		return 2
	}

	if err == nil {
		return 0
	}
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if code, ok := sandbox.IsExitError(err); ok {
		a.logger.Error("sandbox failed", slog.String("error", err.Error()))
		return code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "%s: %v\n", command, err)
		return 2
	}
	a.logger.Error(command+" failed", slog.String("error", err.Error()))
	return 1
}

// usageError is a command line the command cannot act on.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }
