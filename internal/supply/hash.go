package supply

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Digest is a pinned artifact digest in "sha256:<hex>" form.
type Digest string

// ParseDigest validates s and returns it as a Digest.
func ParseDigest(s string) (Digest, error) {
	algorithm, hexDigest, ok := strings.Cut(s, ":")
	if !ok {
		return "", fmt.Errorf("invalid digest %q: expected \"sha256:<hex>\"", s)
	}
	if algorithm != "sha256" {
		return "", fmt.Errorf("unsupported digest algorithm %q: only \"sha256\" is supported", algorithm)
	}
	if hexDigest == "" {
		return "", fmt.Errorf("empty digest in %q", s)
	}
	if len(hexDigest) != sha256.Size*2 {
		return "", fmt.Errorf("sha256 digest must be 64 hex characters, got %d", len(hexDigest))
	}
	if _, err := hex.DecodeString(hexDigest); err != nil {
		return "", fmt.Errorf("invalid hex in digest %q: %w", s, err)
	}
	return Digest(strings.ToLower(s)), nil
}

// FileDigest hashes a regular file. Symlinks must already be resolved.
func FileDigest(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%q is not a regular file", path)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %q: %w", path, err)
	}
	return Digest(fmt.Sprintf("sha256:%x", h.Sum(nil))), nil
}
