//go:build unix

package osfs

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/mizchi/web-shell/vfs"
)

// classify attaches a vfs category to a host failure by errno.
func classify(op, name string, err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return vfs.WrapError(op, name, vfs.InvalidState, err)
	}

	switch errno {
	case unix.ENOENT:
		return vfs.WrapError(op, name, vfs.NotFound, err)
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return vfs.WrapError(op, name, vfs.NotAllowed, err)
	case unix.ENOTEMPTY, unix.EEXIST, unix.EBUSY:
		return vfs.WrapError(op, name, vfs.InvalidModification, err)
	case unix.ENOTDIR, unix.EISDIR:
		return vfs.WrapError(op, name, vfs.TypeMismatch, err)
	case unix.EINVAL, unix.ENAMETOOLONG:
		return vfs.WrapError(op, name, vfs.InvalidArgument, err)
	case unix.EFBIG:
		return vfs.WrapError(op, name, vfs.TooLarge, err)
	case unix.ELOOP, unix.EXDEV:
		// symlink traversal refused by the root
		return vfs.WrapError(op, name, vfs.Security, err)
	case unix.EINTR, unix.ECANCELED:
		return vfs.WrapError(op, name, vfs.Aborted, err)
	}
	return vfs.WrapError(op, name, vfs.InvalidState, err)
}
