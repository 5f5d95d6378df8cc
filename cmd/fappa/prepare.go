package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/moby/sys/user"
	"github.com/spf13/pflag"

	"github.com/VikingOwl91/fappa/internal/idmap"
	"github.com/VikingOwl91/fappa/internal/release"
	"github.com/VikingOwl91/fappa/internal/rootfs"
	"github.com/VikingOwl91/fappa/internal/sandbox"
	"github.com/VikingOwl91/fappa/internal/supply"
)

func (a *app) prepare(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("prepare", pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	all := flags.Bool("all", false, "prepare every release selected by releases.select")
	if err := flags.Parse(args); err != nil {
		return err
	}

	distributions := flags.Args()
	if *all {
		if len(distributions) > 0 {
			return &usageError{msg: "--all cannot be combined with distribution names"}
		}
		selected, err := a.selectedReleases()
		if err != nil {
			return err
		}
		for _, r := range selected {
			distributions = append(distributions, r.Codename)
		}
	}
	if len(distributions) == 0 {
		return &usageError{msg: "no distribution given"}
	}
	for _, d := range distributions {
		if err := rootfs.ValidateDistribution(d); err != nil {
			return &usageError{msg: err.Error()}
		}
	}

	coord, err := a.coordinator()
	if err != nil {
		return err
	}

	for _, d := range distributions {
		if err := a.prepareOne(ctx, coord, d); err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
	}
	return nil
}

func (a *app) coordinator() (*sandbox.Coordinator, error) {
	m := a.cfg.IDMapping
	caps := sandbox.DetectCapabilities(m.UIDHelper, m.GIDHelper)
	if level := caps.EffectiveLevel(); level != "full" {
		a.logger.Warn("host cannot fully support sandboxes",
			slog.String("level", level),
			slog.Bool("user_namespace", caps.UserNamespace),
			slog.String("newuidmap", caps.NewUIDMap),
			slog.String("newgidmap", caps.NewGIDMap),
		)
	}

	mapping, err := a.mapping()
	if err != nil {
		return nil, err
	}

	return sandbox.New(sandbox.Config{
		Cache: rootfs.NewCache(a.cfg.CacheDir, a.cfg.Arch, a.logger),
		Init: supply.Artifact{
			Path:    a.cfg.Init.Path,
			Digest:  a.cfg.Init.Hash,
			Allowed: a.cfg.Init.AllowedPaths,
		},
		Nameserver:   a.cfg.Nameserver,
		Mapper:       idmap.NewHelperMapper(m.UIDHelper, m.GIDHelper, a.logger),
		Mapping:      mapping,
		EnvAllowlist: a.cfg.EnvAllowlist,
		LogLevel:     a.cfg.LogLevel,
		LogFormat:    a.cfg.LogFormat,
		Logger:       a.logger,
	})
}

// mapping resolves the identity mapping for the invoking user.
func (a *app) mapping() (idmap.Mapping, error) {
	uid, gid := os.Geteuid(), os.Getegid()
	pool, err := a.cfg.IDMapping.Pool(currentUserName(uid), uid)
	if err != nil {
		return idmap.Mapping{}, err
	}
	return idmap.New(uid, gid, pool), nil
}

func currentUserName(uid int) string {
	u, err := user.LookupUid(uid)
	if err == nil {
		return u.Name
	}
	return os.Getenv("USER")
}

// prepareOne boots one sandbox and waits for it. The host has no tasks to
// send, so init sees EOF on its channel once resumed.
func (a *app) prepareOne(ctx context.Context, coord *sandbox.Coordinator, distribution string) error {
	h, err := coord.Prepare(ctx, distribution)
	if err != nil {
		return err
	}
	logger := a.logger.With(slog.String("sandbox", h.ID.String()), slog.String("distribution", distribution))

	h.Send.Close()
	if err := drainInit(logger, h.Recv); err != nil {
		logger.Warn("reading init output failed", slog.String("error", err.Error()))
	}
	h.Recv.Close()

	status, err := h.Wait()
	if err != nil {
		return err
	}
	logger.Info("sandbox exited", slog.String("status", status.String()))
	return nil
}

// drainInit logs every line init writes until EOF and returns the read
// error that ended the stream early, if any.
func drainInit(logger *slog.Logger, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug("init", slog.String("line", scanner.Text()))
	}
	return scanner.Err()
}

func (a *app) selectedReleases() ([]release.Release, error) {
	sel, err := release.NewSelector(a.cfg.Releases.Select)
	if err != nil {
		return nil, err
	}
	return sel.Select(release.All())
}
