//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// AdviseSequential tells the kernel the whole file will be read front to
// back so it can read ahead aggressively. Errors are ignored; the hint is
// advisory and not every filesystem supports it.
//
//nolint:gosec // G115: fd values are small non-negative integers
func AdviseSequential(f *os.File) {
	//nolint:errcheck // fadvise is advisory
	unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
