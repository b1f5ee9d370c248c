//go:build !darwin && !freebsd && !linux

package looplib

// checkDiskSpace always passes on platforms without a statfs wrapper.
func checkDiskSpace(path string, requiredBytes int64) error {
	return nil
}
