//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// MaxOpenFiles returns the soft RLIMIT_NOFILE for the process, or 0 if it
// cannot be read or is unlimited.
func MaxOpenFiles() uint64 {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0
	}
	if rlim.Cur == unix.RLIM_INFINITY {
		return 0
	}
	return rlim.Cur
}
