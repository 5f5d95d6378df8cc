//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Sysctls gating unprivileged user namespaces.
var (
	unprivilegedUsernsClone = "/proc/sys/kernel/unprivileged_userns_clone"
	maxUserNamespaces       = "/proc/sys/user/max_user_namespaces"
)

// DetectCapabilities inspects the host for sandbox capabilities. uidHelper and
// gidHelper are looked up in PATH unless they contain a slash.
func DetectCapabilities(uidHelper, gidHelper string) Capabilities {
	return Capabilities{
		UserNamespace: detectUserNamespace(),
		NewUIDMap:     lookHelper(uidHelper),
		NewGIDMap:     lookHelper(gidHelper),
	}
}

func detectUserNamespace() bool {
	// Debian and Ubuntu kernels gate unprivileged clones behind this sysctl.
	if v, ok := readSysctl(unprivilegedUsernsClone); ok && v == 0 {
		return false
	}
	v, ok := readSysctl(maxUserNamespaces)
	if !ok {
		// Kernels without the sysctl predate the limit.
		_, err := os.Stat("/proc/self/ns/user")
		return err == nil
	}
	return v > 0
}

func readSysctl(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return v, true
}

func lookHelper(name string) string {
	if name == "" {
		return ""
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}
