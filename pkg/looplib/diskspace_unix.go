//go:build darwin || freebsd || linux

package looplib

import (
	"fmt"
	"syscall"
)

// checkDiskSpace verifies the filesystem holding path has room for a
// download of requiredBytes. Sources that do not report a length pass
// requiredBytes <= 0 and skip the check, as does a failed statfs; the
// download then surfaces its own write error if the disk really is full.
func checkDiskSpace(path string, requiredBytes int64) error {
	if requiredBytes <= 0 {
		return nil
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}

	// Bavail counts blocks available to unprivileged users.
	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)

	if availableBytes < requiredBytes {
		return fmt.Errorf("%w: need %s, %s free in media cache",
			ErrInsufficientDiskSpace,
			ByteSize(requiredBytes),
			ByteSize(availableBytes))
	}

	return nil
}
