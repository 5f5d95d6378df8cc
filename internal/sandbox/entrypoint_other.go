//go:build !linux

package sandbox

// RunInitializer is not supported on non-Linux platforms.
func RunInitializer() (int, error) {
	return ExitSetupFailed, ErrUnsupported
}

// RunBootstrapper is not supported on non-Linux platforms.
func RunBootstrapper() error {
	return ErrUnsupported
}
