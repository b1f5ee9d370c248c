//go:build !windows

package looplib

import "syscall"

// isRetryableErrno reports whether a syscall error indicates a transient
// connection problem worth retrying.
func isRetryableErrno(errno syscall.Errno) bool {
	switch errno {
	case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
		syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH,
		syscall.EPIPE:
		return true
	}
	return false
}
