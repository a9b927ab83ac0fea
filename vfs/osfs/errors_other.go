//go:build !unix

package osfs

import (
	"errors"
	"io/fs"

	"github.com/mizchi/web-shell/vfs"
)

// classify attaches a vfs category to a host failure.
func classify(op, name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return vfs.WrapError(op, name, vfs.NotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return vfs.WrapError(op, name, vfs.NotAllowed, err)
	case errors.Is(err, fs.ErrExist):
		return vfs.WrapError(op, name, vfs.InvalidModification, err)
	case errors.Is(err, fs.ErrInvalid):
		return vfs.WrapError(op, name, vfs.InvalidArgument, err)
	}
	return vfs.WrapError(op, name, vfs.InvalidState, err)
}
