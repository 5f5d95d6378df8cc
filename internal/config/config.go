package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/VikingOwl91/fappa/internal/idmap"
	"github.com/VikingOwl91/fappa/internal/release"
	"github.com/VikingOwl91/fappa/internal/rootfs"
)

const (
	IDSourceFixed = "fixed"
	IDSourceSubID = "subid"
)

type InitConfig struct {
	Path         string   `yaml:"path"`
	Hash         string   `yaml:"hash,omitempty"`
	AllowedPaths []string `yaml:"allowed_paths,omitempty"`
}

type IDMappingConfig struct {
	// Source is "fixed" (use the starts and count below) or "subid"
	// (read the host user's ranges from /etc/subuid and /etc/subgid).
	Source    string `yaml:"source"`
	UIDStart  int    `yaml:"uid_start,omitempty"`
	GIDStart  int    `yaml:"gid_start,omitempty"`
	Count     int    `yaml:"count,omitempty"`
	UIDHelper string `yaml:"uid_helper,omitempty"`
	GIDHelper string `yaml:"gid_helper,omitempty"`
}

type ReleasesConfig struct {
	Select string `yaml:"select,omitempty"`
}

type Config struct {
	CacheDir     string          `yaml:"cache_dir"`
	Arch         string          `yaml:"arch,omitempty"`
	Nameserver   string          `yaml:"nameserver,omitempty"`
	Init         InitConfig      `yaml:"init"`
	IDMapping    IDMappingConfig `yaml:"id_mapping,omitempty"`
	EnvAllowlist []string        `yaml:"env_allowlist,omitempty"`
	Releases     ReleasesConfig  `yaml:"releases,omitempty"`
	LogLevel     string          `yaml:"log_level,omitempty"`
	LogFormat    string          `yaml:"log_format,omitempty"`
}

// DefaultEnvAllowlist is passed through to the init program when the config
// names none.
var DefaultEnvAllowlist = []string{"PATH", "TERM", "LANG", "LC_ALL", "TZ"}

// Default returns a validated configuration rooted at cacheDir.
func Default(cacheDir string) *Config {
	cfg := &Config{
		CacheDir: cacheDir,
		Init:     InitConfig{Path: "target/debug/finit"},
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist and was not explicitly requested.
func LoadOrDefault(path string, explicit bool, cacheDir string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return Default(cacheDir), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if !filepath.IsAbs(c.CacheDir) {
		abs, err := filepath.Abs(c.CacheDir)
		if err != nil {
			return fmt.Errorf("cache_dir %q: %w", c.CacheDir, err)
		}
		c.CacheDir = abs
	}
	if c.Arch == "" {
		c.Arch = "amd64"
	}
	if c.Nameserver == "" {
		c.Nameserver = rootfs.DefaultNameserver
	}
	if c.Init.Path == "" {
		return fmt.Errorf("init.path is required")
	}
	if c.EnvAllowlist == nil {
		c.EnvAllowlist = DefaultEnvAllowlist
	}

	if err := c.validateIDMapping(); err != nil {
		return err
	}

	if _, err := release.NewSelector(c.Releases.Select); err != nil {
		return fmt.Errorf("releases.select: %w", err)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validateIDMapping() error {
	m := &c.IDMapping
	if m.Source == "" {
		m.Source = IDSourceFixed
	}
	if m.UIDHelper == "" {
		m.UIDHelper = "newuidmap"
	}
	if m.GIDHelper == "" {
		m.GIDHelper = "newgidmap"
	}
	if m.Count == 0 {
		m.Count = idmap.DefaultSubordinateCount
	}

	switch m.Source {
	case IDSourceFixed:
		if m.UIDStart == 0 {
			m.UIDStart = idmap.DefaultSubordinateStart
		}
		if m.GIDStart == 0 {
			m.GIDStart = idmap.DefaultSubordinateStart
		}
		if err := m.fixedPool().Validate(); err != nil {
			return fmt.Errorf("id_mapping: %w", err)
		}
	case IDSourceSubID:
		if m.UIDStart != 0 || m.GIDStart != 0 {
			return fmt.Errorf("id_mapping: uid_start/gid_start cannot be combined with source %q", IDSourceSubID)
		}
		if m.Count < 0 {
			return fmt.Errorf("id_mapping: count must be positive, got %d", m.Count)
		}
	default:
		return fmt.Errorf("id_mapping.source must be %q or %q, got %q", IDSourceFixed, IDSourceSubID, m.Source)
	}
	return nil
}

func (m IDMappingConfig) fixedPool() idmap.Pool {
	return idmap.Pool{UIDStart: m.UIDStart, GIDStart: m.GIDStart, Count: m.Count}
}

// Pool resolves the subordinate ID pool for the given host user. With
// source "subid" the subordinate ID files are read here, once.
func (m IDMappingConfig) Pool(username string, uid int) (idmap.Pool, error) {
	if m.Source != IDSourceSubID {
		return m.fixedPool(), nil
	}
	return idmap.LoadSubordinatePool(idmap.SubUIDFile, idmap.SubGIDFile, username, uid, m.Count)
}
