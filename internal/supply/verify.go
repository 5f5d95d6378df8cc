// Package supply checks build artifacts before they are injected into a
// sandbox root.
package supply

import "fmt"

// Artifact is a file the host copies into every sandbox root.
type Artifact struct {
	Path    string
	Digest  string   // optional pinned "sha256:<hex>"
	Allowed []string // optional directories the resolved path must be under
}

// Verified is an artifact that passed Verify.
type Verified struct {
	Path   string // absolute, symlinks resolved
	Digest Digest // computed; empty when no digest was pinned
}

// Verify resolves the artifact, checks its location and, when a digest is
// pinned, its content. The location check runs first so nothing outside
// the allowed directories is ever read.
func (a Artifact) Verify() (*Verified, error) {
	resolved, err := Resolve(a.Path)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	if err := Within(resolved, a.Allowed); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	v := &Verified{Path: resolved}
	if a.Digest == "" {
		return v, nil
	}

	want, err := ParseDigest(a.Digest)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	got, err := FileDigest(resolved)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	if got != want {
		return nil, fmt.Errorf("artifact: digest mismatch for %q: expected %s, computed %s", resolved, want, got)
	}
	v.Digest = got
	return v, nil
}
