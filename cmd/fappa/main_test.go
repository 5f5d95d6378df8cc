package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_Version(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		code, stdout, _ := runCLI(t, args...)
		assert.Equal(t, 0, code)
		assert.Equal(t, "fappa dev (unknown, unknown)\n", stdout)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"frobnicate"}},
		{"unknown flag", []string{"--frobnicate", "releases"}},
		{"prepare without distributions", []string{"prepare"}},
		{"prepare all with names", []string{"prepare", "--all", "buster"}},
		{"prepare bad name", []string{"prepare", "../etc"}},
		{"releases with args", []string{"releases", "buster"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestRun_ExplicitMissingConfig(t *testing.T) {
	code, _, stderr := runCLI(t, "--config", "/nonexistent/fappa.yaml", "releases")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "/nonexistent/fappa.yaml")
}

func TestRun_ReleasesSelected(t *testing.T) {
	cfg := writeConfig(t, `
cache_dir: /tmp/fappa-cache
init:
  path: /bin/true
releases:
  select: 'release.distro == "debian"'
`)
	code, stdout, _ := runCLI(t, "--config", cfg, "releases")
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "CODENAME"))
	assert.Contains(t, lines[1], "stretch")
	assert.Contains(t, lines[2], "jessie")
	assert.Contains(t, lines[3], "buster")
	assert.Contains(t, lines[2], "locales", "jessie has no locales-all")
	assert.NotContains(t, stdout, "bionic")
}

func TestRun_ReleasesDefaultConfig(t *testing.T) {
	code, stdout, _ := runCLI(t, "releases")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "bionic")
	assert.Contains(t, stdout, "fappa-cosmic")
}

func TestRun_Explain(t *testing.T) {
	initBin := filepath.Join(t.TempDir(), "finit")
	require.NoError(t, os.WriteFile(initBin, []byte("init"), 0o755))

	cfg := writeConfig(t, fmt.Sprintf(`
cache_dir: /var/cache/fappa
nameserver: 10.0.0.53
init:
  path: %s
id_mapping:
  source: fixed
  uid_start: 200000
  gid_start: 300000
  count: 1000
releases:
  select: 'release.channel == "best"'
`, initBin))

	code, stdout, _ := runCLI(t, "--config", cfg, "explain")
	require.Equal(t, 0, code)

	var out explainOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	assert.Equal(t, "/var/cache/fappa", out.CacheDir)
	assert.Equal(t, "10.0.0.53", out.Nameserver)
	assert.Equal(t, "amd64", out.Arch)

	resolved, err := filepath.EvalSymlinks(initBin)
	require.NoError(t, err)
	assert.Equal(t, resolved, out.Init.ResolvedPath)
	assert.True(t, strings.HasPrefix(out.Init.ComputedHash, "sha256:"))
	assert.Empty(t, out.Init.Error)

	assert.Equal(t, "fixed", out.IDMapping.Source)
	require.Len(t, out.IDMapping.UIDs, 2)
	assert.Equal(t, fmt.Sprintf("0->%d(1)", os.Geteuid()), out.IDMapping.UIDs[0])
	assert.Equal(t, "1->200000(1000)", out.IDMapping.UIDs[1])
	assert.Equal(t, "1->300000(1000)", out.IDMapping.GIDs[1])

	assert.Equal(t, []string{"bionic", "stretch"}, out.Releases.Selected)
	assert.Contains(t, []string{"full", "partial", "minimal"}, out.Capabilities.Level)
}

func TestRun_ExplainReportsBadInit(t *testing.T) {
	cfg := writeConfig(t, `
cache_dir: /var/cache/fappa
init:
  path: /nonexistent/finit
`)
	code, stdout, _ := runCLI(t, "--config", cfg, "explain")
	require.Equal(t, 0, code)

	var out explainOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.NotEmpty(t, out.Init.Error)
	assert.Empty(t, out.Init.ResolvedPath)
}
