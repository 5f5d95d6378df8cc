package supply

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolve turns a possibly relative artifact path into an absolute one with
// symlinks evaluated. Relative paths are taken from the working directory,
// not PATH: the init binary is a build product, not an installed command.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", abs, err)
	}
	return resolved, nil
}

// Within reports whether resolved sits under one of the allowed
// directories. No allowed directories means no restriction.
func Within(resolved string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, dir := range allowed {
		dir = filepath.Clean(expandHome(dir))
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%q is not under any allowed directory", resolved)
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
