// Package rootfs keeps unpacked distribution root filesystems on disk and
// prepares them for a sandbox.
package rootfs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/moby/go-archive"
)

var distributionPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateDistribution checks that name is usable as a cache directory.
func ValidateDistribution(name string) error {
	if name == "" {
		return fmt.Errorf("distribution name must not be empty")
	}
	if len(name) > 32 {
		return fmt.Errorf("distribution name %q exceeds 32 characters", name)
	}
	if !distributionPattern.MatchString(name) {
		return fmt.Errorf("distribution name %q must match [a-zA-Z0-9_-]+", name)
	}
	return nil
}

// Unpacker extracts a (possibly compressed) tarball into dest.
type Unpacker func(tarball, dest string) error

// Cache maps a distribution name to its unpacked root:
//
//	<dir>/<distribution>/<arch>-root.tar.gz  (input)
//	<dir>/<distribution>/root                (unpacked)
type Cache struct {
	dir    string
	arch   string
	logger *slog.Logger
	unpack Unpacker

	mu sync.Mutex
}

// NewCache returns a cache rooted at dir.
func NewCache(dir, arch string, logger *slog.Logger) *Cache {
	if arch == "" {
		arch = "amd64"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		dir:    dir,
		arch:   arch,
		logger: logger,
		unpack: Untar,
	}
}

// Root is where distribution's root filesystem lives once unpacked.
func (c *Cache) Root(distribution string) string {
	return filepath.Join(c.dir, distribution, "root")
}

// Tarball is the archive distribution's root is unpacked from.
func (c *Cache) Tarball(distribution string) string {
	return filepath.Join(c.dir, distribution, c.arch+"-root.tar.gz")
}

// Ensure returns the unpacked root of distribution, unpacking it first if
// it does not exist yet. An existing root is never touched again.
func (c *Cache) Ensure(distribution string) (string, error) {
	if err := ValidateDistribution(distribution); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.Root(distribution)
	info, err := os.Stat(root)
	switch {
	case err == nil && info.IsDir():
		return root, nil
	case err == nil:
		return "", fmt.Errorf("rootfs %s exists but is not a directory", root)
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("checking rootfs %s: %w", root, err)
	}

	tarball := c.Tarball(distribution)
	partial := root + ".partial"
	if err := os.RemoveAll(partial); err != nil {
		return "", fmt.Errorf("clearing stale %s: %w", partial, err)
	}
	if err := os.Mkdir(partial, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", partial, err)
	}

	c.logger.Info("unpacking rootfs", "distribution", distribution, "tarball", tarball)
	if err := c.unpack(tarball, partial); err != nil {
		os.RemoveAll(partial)
		return "", fmt.Errorf("unpacking %s: %w", tarball, err)
	}
	if err := os.Rename(partial, root); err != nil {
		os.RemoveAll(partial)
		return "", fmt.Errorf("moving unpacked rootfs into place: %w", err)
	}
	return root, nil
}

// Untar extracts tarball into dest. Ownership is not restored and device
// nodes are skipped: the caller is an unprivileged host user.
func Untar(tarball, dest string) error {
	f, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer f.Close()
	return untar(f, dest)
}

func untar(r io.Reader, dest string) error {
	return archive.Untar(r, dest, &archive.TarOptions{
		NoLchown: true,
		InUserNS: true,
	})
}
