//go:build !linux

package sandbox

// DetectCapabilities returns all-false on non-Linux platforms.
func DetectCapabilities(_, _ string) Capabilities {
	return Capabilities{}
}
