package idmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultPool(t *testing.T) {
	m := New(1000, 1001, DefaultPool())

	assert.Equal(t, []Range{
		{NamespaceID: 0, HostID: 1000, Length: 1},
		{NamespaceID: 1, HostID: 165536, Length: 65535},
	}, m.UIDs)
	assert.Equal(t, []Range{
		{NamespaceID: 0, HostID: 1001, Length: 1},
		{NamespaceID: 1, HostID: 165536, Length: 65535},
	}, m.GIDs)
}

func TestNew_CustomPool(t *testing.T) {
	m := New(0, 0, Pool{UIDStart: 200000, GIDStart: 300000, Count: 1000})

	assert.Equal(t, Range{NamespaceID: 1, HostID: 200000, Length: 1000}, m.UIDs[1])
	assert.Equal(t, Range{NamespaceID: 1, HostID: 300000, Length: 1000}, m.GIDs[1])
}

func TestHelperArgs(t *testing.T) {
	m := New(1000, 1000, DefaultPool())

	got := HelperArgs(4242, m.UIDs)
	assert.Equal(t, []string{"4242", "0", "1000", "1", "1", "165536", "65535"}, got)
}

func TestHelperArgs_NoRanges(t *testing.T) {
	assert.Equal(t, []string{"7"}, HelperArgs(7, nil))
}

func TestRange_String(t *testing.T) {
	assert.Equal(t, "1->165536(65535)", Range{1, 165536, 65535}.String())
}

func TestPool_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pool    Pool
		wantErr string
	}{
		{"default", DefaultPool(), ""},
		{"zero count", Pool{UIDStart: 1, GIDStart: 1}, "count"},
		{"zero start", Pool{Count: 10}, "start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pool.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func writeSubIDFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subid")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSubordinatePool_ByName(t *testing.T) {
	subuid := writeSubIDFile(t, "alice:100000:65536\nbuilder:165536:65536\n")
	subgid := writeSubIDFile(t, "builder:231072:65536\n")

	pool, err := LoadSubordinatePool(subuid, subgid, "builder", 1000, DefaultSubordinateCount)
	require.NoError(t, err)
	assert.Equal(t, Pool{UIDStart: 165536, GIDStart: 231072, Count: DefaultSubordinateCount}, pool)
}

func TestLoadSubordinatePool_ByNumericUID(t *testing.T) {
	subuid := writeSubIDFile(t, "1000:300000:65536\n")
	subgid := writeSubIDFile(t, "1000:400000:70000\n")

	pool, err := LoadSubordinatePool(subuid, subgid, "nobody-by-name", 1000, DefaultSubordinateCount)
	require.NoError(t, err)
	assert.Equal(t, 300000, pool.UIDStart)
	assert.Equal(t, 400000, pool.GIDStart)
}

func TestLoadSubordinatePool_RangeTooSmall(t *testing.T) {
	subuid := writeSubIDFile(t, "builder:165536:100\n")
	subgid := writeSubIDFile(t, "builder:165536:65536\n")

	_, err := LoadSubordinatePool(subuid, subgid, "builder", 1000, DefaultSubordinateCount)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subordinate id range")
}

func TestLoadSubordinatePool_MissingFile(t *testing.T) {
	_, err := LoadSubordinatePool("/nonexistent/subuid", "/nonexistent/subgid", "builder", 1000, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/subuid")
}
