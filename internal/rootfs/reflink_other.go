//go:build !linux

package rootfs

import (
	"errors"
	"os"
)

func reflink(_, _ *os.File) error {
	return errors.ErrUnsupported
}
