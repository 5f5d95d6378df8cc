package sandbox

import "strings"

// FilterEnv returns the env entries whose keys are allowed. An allowlist
// entry ending in '*' matches every key with that prefix. Entries without
// '=' are dropped and key matching is case-sensitive. Order is preserved.
func FilterEnv(env []string, allowlist []string) []string {
	if len(env) == 0 || len(allowlist) == 0 {
		return nil
	}

	exact := make(map[string]bool, len(allowlist))
	var prefixes []string
	for _, k := range allowlist {
		if p, ok := strings.CutSuffix(k, "*"); ok {
			prefixes = append(prefixes, p)
			continue
		}
		exact[k] = true
	}

	var result []string
	for _, entry := range env {
		k, _, ok := strings.Cut(entry, "=")
		if !ok || k == "" {
			continue
		}
		if exact[k] || hasAnyPrefix(k, prefixes) {
			result = append(result, entry)
		}
	}
	return result
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
