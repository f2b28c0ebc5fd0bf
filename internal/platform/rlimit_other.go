//go:build !linux && !darwin

package platform

// MaxOpenFiles is unknown on this platform.
func MaxOpenFiles() uint64 { return 0 }
