//go:build windows

package looplib

import "syscall"

// Native WSAE* socket error codes. Windows APIs return these rather
// than the POSIX-named Errno values Go also defines, so both sets need
// checking.
// See: https://docs.microsoft.com/en-us/windows/win32/winsock/windows-sockets-error-codes-2
const (
	wsaenetdown     syscall.Errno = 10050
	wsaenetunreach  syscall.Errno = 10051
	wsaenetreset    syscall.Errno = 10052
	wsaeconnaborted syscall.Errno = 10053
	wsaeconnreset   syscall.Errno = 10054
	wsaenobufs      syscall.Errno = 10055
	wsaetimedout    syscall.Errno = 10060
	wsaeconnrefused syscall.Errno = 10061
	wsaehostdown    syscall.Errno = 10064
	wsaehostunreach syscall.Errno = 10065
)

// isRetryableErrno reports whether a syscall error indicates a transient
// connection problem worth retrying.
func isRetryableErrno(errno syscall.Errno) bool {
	switch errno {
	case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
		syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH,
		syscall.EPIPE:
		return true
	case wsaeconnreset, wsaeconnrefused, wsaeconnaborted,
		wsaetimedout, wsaenetunreach, wsaehostunreach,
		wsaenetdown, wsaenetreset, wsaenobufs, wsaehostdown:
		return true
	}
	return false
}
