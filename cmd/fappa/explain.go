package main

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"github.com/VikingOwl91/fappa/internal/idmap"
	"github.com/VikingOwl91/fappa/internal/release"
	"github.com/VikingOwl91/fappa/internal/sandbox"
	"github.com/VikingOwl91/fappa/internal/supply"
)

type explainOutput struct {
	CacheDir     string              `json:"cache_dir"`
	Arch         string              `json:"arch"`
	Nameserver   string              `json:"nameserver"`
	EnvAllowlist []string            `json:"env_allowlist"`
	LogLevel     string              `json:"log_level"`
	LogFormat    string              `json:"log_format"`
	Init         explainInit         `json:"init"`
	IDMapping    explainIDMapping    `json:"id_mapping"`
	Releases     explainReleases     `json:"releases"`
	Capabilities explainCapabilities `json:"capabilities"`
}

type explainInit struct {
	Path         string   `json:"path"`
	Hash         string   `json:"hash,omitempty"`
	AllowedPaths []string `json:"allowed_paths,omitempty"`
	ResolvedPath string   `json:"resolved_path,omitempty"`
	ComputedHash string   `json:"computed_hash,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type explainIDMapping struct {
	Source string   `json:"source"`
	UIDs   []string `json:"uid_map,omitempty"`
	GIDs   []string `json:"gid_map,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type explainReleases struct {
	Select   string   `json:"select,omitempty"`
	Selected []string `json:"selected"`
}

type explainCapabilities struct {
	Level         string `json:"level"`
	UserNamespace bool   `json:"user_namespace"`
	NewUIDMap     string `json:"newuidmap,omitempty"`
	NewGIDMap     string `json:"newgidmap,omitempty"`
}

func (a *app) explain(args []string) error {
	flags := pflag.NewFlagSet("explain", pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	if err := flags.Parse(args); err != nil {
		return err
	}

	output, err := a.buildExplain()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling explanation: %w", err)
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}

func (a *app) buildExplain() (*explainOutput, error) {
	cfg := a.cfg
	output := &explainOutput{
		CacheDir:     cfg.CacheDir,
		Arch:         cfg.Arch,
		Nameserver:   cfg.Nameserver,
		EnvAllowlist: cfg.EnvAllowlist,
		LogLevel:     cfg.LogLevel,
		LogFormat:    cfg.LogFormat,
		Init:         a.initReport(),
		IDMapping:    explainIDMapping{Source: cfg.IDMapping.Source},
		Releases:     explainReleases{Select: cfg.Releases.Select},
	}

	if mapping, err := a.mapping(); err != nil {
		output.IDMapping.Error = err.Error()
	} else {
		output.IDMapping.UIDs = lo.Map(mapping.UIDs, func(r idmap.Range, _ int) string { return r.String() })
		output.IDMapping.GIDs = lo.Map(mapping.GIDs, func(r idmap.Range, _ int) string { return r.String() })
	}

	selected, err := a.selectedReleases()
	if err != nil {
		return nil, err
	}
	output.Releases.Selected = lo.Map(selected, func(r release.Release, _ int) string { return r.Codename })

	caps := sandbox.DetectCapabilities(cfg.IDMapping.UIDHelper, cfg.IDMapping.GIDHelper)
	output.Capabilities = explainCapabilities{
		Level:         caps.EffectiveLevel(),
		UserNamespace: caps.UserNamespace,
		NewUIDMap:     caps.NewUIDMap,
		NewGIDMap:     caps.NewGIDMap,
	}

	return output, nil
}

// initReport reports the init binary as prepare would verify it.
func (a *app) initReport() explainInit {
	ic := a.cfg.Init
	out := explainInit{
		Path:         ic.Path,
		Hash:         ic.Hash,
		AllowedPaths: ic.AllowedPaths,
	}
	verified, err := supply.Artifact{Path: ic.Path, Digest: ic.Hash, Allowed: ic.AllowedPaths}.Verify()
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.ResolvedPath = verified.Path
	if verified.Digest == "" {
		if d, err := supply.FileDigest(verified.Path); err == nil {
			verified.Digest = d
		}
	}
	out.ComputedHash = string(verified.Digest)
	return out
}
