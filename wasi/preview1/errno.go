package preview1

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/mizchi/web-shell/errors"
	"github.com/mizchi/web-shell/vfs"
)

// Errno is a wasi_snapshot_preview1 status code. Only the codes this host
// produces are named.
type Errno uint16

const (
	ErrnoSuccess         Errno = 0
	ErrnoAccessDenied    Errno = 2
	ErrnoBadDescriptor   Errno = 8
	ErrnoCancelled       Errno = 11
	ErrnoAlreadyExists   Errno = 20
	ErrnoFileTooLarge    Errno = 22
	ErrnoInvalidArgument Errno = 28
	ErrnoIsDirectory     Errno = 31
	ErrnoNoEntry         Errno = 44
	ErrnoUnsupported     Errno = 52
	ErrnoNotDirectory    Errno = 54
	ErrnoNotEmpty        Errno = 55
	ErrnoNotCapable      Errno = 76
)

var errnoNames = map[Errno]string{
	ErrnoSuccess:         "ESUCCESS",
	ErrnoAccessDenied:    "EACCES",
	ErrnoBadDescriptor:   "EBADF",
	ErrnoCancelled:       "ECANCELED",
	ErrnoAlreadyExists:   "EEXIST",
	ErrnoFileTooLarge:    "EFBIG",
	ErrnoInvalidArgument: "EINVAL",
	ErrnoIsDirectory:     "EISDIR",
	ErrnoNoEntry:         "ENOENT",
	ErrnoUnsupported:     "ENOSYS",
	ErrnoNotDirectory:    "ENOTDIR",
	ErrnoNotEmpty:        "ENOTEMPTY",
	ErrnoNotCapable:      "ENOTCAPABLE",
}

func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno(%d)", uint16(e))
}

// Error is a failure raised by the host itself, carrying the status the
// guest will see. Quiet errors are expected during normal operation and
// are logged at debug level only.
type Error struct {
	Errno Errno
	Quiet bool
}

func (e *Error) Error() string { return e.Errno.String() }

// Is matches any *Error with the same errno.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Errno == e.Errno
}

func fail(code Errno) error { return &Error{Errno: code} }

func failQuiet(code Errno) error { return &Error{Errno: code, Quiet: true} }

// translateError maps a handler failure to the status the guest sees. ok is
// false when the failure is not one the guest can be told about.
func translateError(err error) (code Errno, quiet bool, ok bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Errno, e.Quiet, true
	}

	if c, found := vfs.CategoryOf(err); found {
		switch c {
		case vfs.NotFound:
			return ErrnoNoEntry, false, true
		case vfs.NotAllowed, vfs.Security, vfs.DataClone:
			return ErrnoAccessDenied, false, true
		case vfs.InvalidModification:
			return ErrnoNotEmpty, false, true
		case vfs.Aborted:
			return ErrnoCancelled, false, true
		case vfs.TypeMismatch, vfs.InvalidArgument:
			return ErrnoInvalidArgument, false, true
		case vfs.TooLarge:
			return ErrnoFileTooLarge, false, true
		}
		return 0, false, false
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return ErrnoCancelled, false, true
	}

	switch {
	case errors.IsKind(err, errors.KindOutOfBounds, errors.KindInvalidInput,
		errors.KindInvalidData, errors.KindInvalidEnum, errors.KindOverflow):
		return ErrnoInvalidArgument, false, true
	case errors.IsKind(err, errors.KindNotFound):
		return ErrnoNoEntry, false, true
	case errors.IsKind(err, errors.KindUnsupported):
		return ErrnoUnsupported, false, true
	}
	return 0, false, false
}
