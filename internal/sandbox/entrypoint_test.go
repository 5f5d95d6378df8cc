package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInitializer_MissingConfig(t *testing.T) {
	t.Setenv("_FAPPA_SANDBOX_CONFIG", "")
	code, err := RunInitializer()
	require.Error(t, err)
	assert.Equal(t, ExitSetupFailed, code)
}

func TestRunInitializer_InvalidJSON(t *testing.T) {
	t.Setenv("_FAPPA_SANDBOX_CONFIG", "not-json")
	code, err := RunInitializer()
	require.Error(t, err)
	assert.Equal(t, ExitSetupFailed, code)
}

func TestRunBootstrapper_MissingConfig(t *testing.T) {
	t.Setenv("_FAPPA_SANDBOX_CONFIG", "")
	err := RunBootstrapper()
	require.Error(t, err)
}
