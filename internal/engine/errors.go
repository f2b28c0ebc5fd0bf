package engine

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorKind classifies per-entry failures. None of them stop the run.
type ErrorKind int

const (
	DirectoryCreate ErrorKind = iota + 1
	SourceOpen
	DestinationOpen
	Stream
)

func (k ErrorKind) String() string {
	switch k {
	case DirectoryCreate:
		return "create directory"
	case SourceOpen:
		return "open source"
	case DestinationOpen:
		return "open destination"
	case Stream:
		return "copy"
	default:
		return "unknown"
	}
}

// CopyError records a failure tied to one directory or file.
type CopyError struct {
	Err  error
	Path string
	Kind ErrorKind
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or 0 if err is not a CopyError.
func KindOf(err error) ErrorKind {
	var ce *CopyError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// Errno extracts the OS error code from err, or 0 if there is none.
func Errno(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
