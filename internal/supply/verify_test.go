package supply

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path = filepath.Join(dir, "finit")
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return dir, path
}

func TestArtifact_VerifyNoPin(t *testing.T) {
	_, path := writeArtifact(t, "init")

	v, err := Artifact{Path: path}.Verify()
	require.NoError(t, err)
	assert.Equal(t, path, v.Path)
	assert.Empty(t, v.Digest)
}

func TestArtifact_VerifyPinnedMatch(t *testing.T) {
	_, path := writeArtifact(t, "init")
	pin := fmt.Sprintf("sha256:%x", sha256.Sum256([]byte("init")))

	v, err := Artifact{Path: path, Digest: pin}.Verify()
	require.NoError(t, err)
	assert.Equal(t, Digest(pin), v.Digest)
}

func TestArtifact_VerifyPinnedMismatch(t *testing.T) {
	_, path := writeArtifact(t, "tampered")
	pin := fmt.Sprintf("sha256:%x", sha256.Sum256([]byte("init")))

	_, err := Artifact{Path: path, Digest: pin}.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
}

func TestArtifact_VerifyFollowsSymlink(t *testing.T) {
	dir, path := writeArtifact(t, "init")
	link := filepath.Join(dir, "current")
	require.NoError(t, os.Symlink(path, link))

	v, err := Artifact{Path: link}.Verify()
	require.NoError(t, err)
	assert.Equal(t, path, v.Path)
}

func TestArtifact_VerifyOutsideAllowed(t *testing.T) {
	_, path := writeArtifact(t, "init")

	_, err := Artifact{Path: path, Allowed: []string{"/opt/fappa"}}.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not under any allowed directory")
}

func TestArtifact_VerifyMissing(t *testing.T) {
	_, err := Artifact{Path: "/nonexistent/finit"}.Verify()
	require.Error(t, err)
}

func TestWithin(t *testing.T) {
	tests := []struct {
		name     string
		resolved string
		allowed  []string
		ok       bool
	}{
		{"no restriction", "/anywhere/finit", nil, true},
		{"under dir", "/opt/fappa/bin/finit", []string{"/opt/fappa"}, true},
		{"trailing slash", "/opt/fappa/finit", []string{"/opt/fappa/"}, true},
		{"exact", "/opt/fappa", []string{"/opt/fappa"}, true},
		{"prefix but not dir", "/opt/fappa-evil/finit", []string{"/opt/fappa"}, false},
		{"second entry", "/usr/lib/fappa/finit", []string{"/opt", "/usr/lib/fappa"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Within(tt.resolved, tt.allowed)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
