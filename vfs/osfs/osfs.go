// Package osfs is a vfs store rooted at a real host directory.
//
// Every access goes through an os.Root, so paths and symbolic links cannot
// escape the directory the store was opened on. Writers buffer in memory
// and commit by renaming a temporary file over the target.
package osfs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/mizchi/web-shell/vfs"
)

const (
	fileMode = 0o644
	dirMode  = 0o755

	// readDirBatch bounds how many entries one iterator step pulls from
	// the host directory.
	readDirBatch = 32

	tempPrefix = ".webshell-"
)

// FS is a store opened on a host directory.
type FS struct {
	root    *os.Root
	host    string
	maxSize int64
}

// Option configures a store.
type Option func(*FS)

// WithMaxFileSize sets the largest size a file may be written to. Zero or
// less removes the limit.
func WithMaxFileSize(n int64) Option {
	return func(fsys *FS) { fsys.maxSize = n }
}

// Open opens the host directory at hostPath as a store.
func Open(hostPath string, opts ...Option) (*FS, error) {
	r, err := os.OpenRoot(hostPath)
	if err != nil {
		return nil, classify("open", hostPath, err)
	}
	fsys := &FS{root: r, host: hostPath, maxSize: vfs.DefaultMaxFileSize}
	for _, o := range opts {
		o(fsys)
	}
	vfs.Logger().Debug("osfs opened", zap.String("path", hostPath))
	return fsys, nil
}

// Root returns the store's top directory.
func (fsys *FS) Root() vfs.Dir {
	return &dir{fs: fsys, rel: ".", name: path.Base(fsys.host)}
}

// Path returns the host directory the store was opened on.
func (fsys *FS) Path() string { return fsys.host }

// Close releases the host directory.
func (fsys *FS) Close() error {
	return fsys.root.Close()
}

type dir struct {
	fs   *FS
	rel  string
	name string
}

type file struct {
	fs   *FS
	rel  string
	name string
}

func aborted(ctx context.Context, op, name string) error {
	if err := ctx.Err(); err != nil {
		return vfs.WrapError(op, name, vfs.Aborted, err)
	}
	return nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == '\\' || name[i] == 0 {
			return false
		}
	}
	return true
}

func (d *dir) Name() string { return d.name }

func (d *dir) child(op, name string) (string, fs.FileInfo, error) {
	if !validName(name) {
		return "", nil, vfs.NewError(op, name, vfs.InvalidArgument)
	}
	rel := path.Join(d.rel, name)
	info, err := d.fs.root.Lstat(rel)
	if err != nil {
		return rel, nil, classify(op, name, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return rel, nil, vfs.NewError(op, name, vfs.Security)
	}
	return rel, info, nil
}

func (d *dir) File(ctx context.Context, name string, create bool) (vfs.File, error) {
	if err := aborted(ctx, "file", name); err != nil {
		return nil, err
	}

	rel, info, err := d.child("file", name)
	switch {
	case err == nil:
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil, vfs.NewError("file", name, vfs.TypeMismatch)
		}
		return &file{fs: d.fs, rel: rel, name: name}, nil
	case !create:
		return nil, err
	}
	if c, _ := vfs.CategoryOf(err); c != vfs.NotFound {
		return nil, err
	}

	f, err := d.fs.root.OpenFile(rel, os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return nil, classify("create", name, err)
	}
	if err := f.Close(); err != nil {
		return nil, classify("create", name, err)
	}
	return &file{fs: d.fs, rel: rel, name: name}, nil
}

func (d *dir) Dir(ctx context.Context, name string, create bool) (vfs.Dir, error) {
	if err := aborted(ctx, "dir", name); err != nil {
		return nil, err
	}

	rel, info, err := d.child("dir", name)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, vfs.NewError("dir", name, vfs.TypeMismatch)
		}
		return &dir{fs: d.fs, rel: rel, name: name}, nil
	case !create:
		return nil, err
	}
	if c, _ := vfs.CategoryOf(err); c != vfs.NotFound {
		return nil, err
	}

	if err := d.fs.root.Mkdir(rel, dirMode); err != nil {
		return nil, classify("mkdir", name, err)
	}
	return &dir{fs: d.fs, rel: rel, name: name}, nil
}

func (d *dir) Entries(ctx context.Context) (vfs.EntryIterator, error) {
	if err := aborted(ctx, "entries", d.name); err != nil {
		return nil, err
	}
	f, err := d.fs.root.Open(d.rel)
	if err != nil {
		return nil, classify("entries", d.name, err)
	}
	return &iterator{f: f}, nil
}

func (d *dir) Remove(ctx context.Context, name string) error {
	if err := aborted(ctx, "remove", name); err != nil {
		return err
	}
	rel, _, err := d.child("remove", name)
	if err != nil {
		return err
	}
	if err := d.fs.root.Remove(rel); err != nil {
		return classify("remove", name, err)
	}
	return nil
}

// iterator streams a host directory in batches. Symbolic links, temporary
// commit files and special files are skipped.
type iterator struct {
	f     *os.File
	batch []fs.DirEntry
	done  bool
}

func (it *iterator) Next(ctx context.Context) (vfs.Entry, error) {
	for {
		if err := aborted(ctx, "next", ""); err != nil {
			return vfs.Entry{}, err
		}
		if len(it.batch) == 0 {
			if it.done || it.f == nil {
				return vfs.Entry{}, io.EOF
			}
			batch, err := it.f.ReadDir(readDirBatch)
			if err != nil && err != io.EOF {
				return vfs.Entry{}, classify("next", it.f.Name(), err)
			}
			if len(batch) == 0 {
				it.done = true
				return vfs.Entry{}, io.EOF
			}
			it.batch = batch
		}

		de := it.batch[0]
		it.batch = it.batch[1:]

		switch t := de.Type(); {
		case t.IsDir():
			return vfs.Entry{Name: de.Name(), Kind: vfs.KindDir}, nil
		case t.IsRegular() && !isTemp(de.Name()):
			return vfs.Entry{Name: de.Name(), Kind: vfs.KindFile}, nil
		}
	}
}

func (it *iterator) Close() error {
	if it.f == nil {
		return nil
	}
	err := it.f.Close()
	it.f = nil
	return err
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

func (f *file) Name() string { return f.name }

func (f *file) Stat(ctx context.Context) (vfs.Info, error) {
	if err := aborted(ctx, "stat", f.name); err != nil {
		return vfs.Info{}, err
	}
	info, err := f.fs.root.Stat(f.rel)
	if err != nil {
		return vfs.Info{}, classify("stat", f.name, err)
	}
	return vfs.Info{Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (f *file) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := aborted(ctx, "read", f.name); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, vfs.NewError("read", f.name, vfs.InvalidArgument)
	}

	h, err := f.fs.root.Open(f.rel)
	if err != nil {
		return 0, classify("read", f.name, err)
	}
	defer h.Close()

	n, err := h.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, classify("read", f.name, err)
	}
	return n, err
}

func (f *file) OpenWriter(ctx context.Context, keepExisting bool) (vfs.Writer, error) {
	if err := aborted(ctx, "open writer", f.name); err != nil {
		return nil, err
	}

	w := &writer{file: f}
	if keepExisting {
		data, err := f.fs.root.ReadFile(f.rel)
		if err != nil {
			return nil, classify("open writer", f.name, err)
		}
		w.buf = data
	}
	return w, nil
}

type writer struct {
	file   *file
	buf    []byte
	closed bool
}

func (w *writer) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := aborted(ctx, "write", w.file.name); err != nil {
		return 0, err
	}
	if w.closed {
		return 0, vfs.NewError("write", w.file.name, vfs.InvalidState)
	}
	if off < 0 {
		return 0, vfs.NewError("write", w.file.name, vfs.InvalidArgument)
	}
	if off > math.MaxInt64-int64(len(p)) {
		return 0, vfs.NewError("write", w.file.name, vfs.TooLarge)
	}

	end := off + int64(len(p))
	if err := vfs.CheckSize("write", w.file.name, end, w.file.fs.maxSize); err != nil {
		return 0, err
	}
	if end > int64(len(w.buf)) {
		w.buf = append(w.buf, make([]byte, end-int64(len(w.buf)))...)
	}
	copy(w.buf[off:], p)
	return len(p), nil
}

func (w *writer) Truncate(ctx context.Context, size int64) error {
	if err := aborted(ctx, "truncate", w.file.name); err != nil {
		return err
	}
	if w.closed {
		return vfs.NewError("truncate", w.file.name, vfs.InvalidState)
	}
	if size < 0 {
		return vfs.NewError("truncate", w.file.name, vfs.InvalidArgument)
	}
	if err := vfs.CheckSize("truncate", w.file.name, size, w.file.fs.maxSize); err != nil {
		return err
	}

	if size <= int64(len(w.buf)) {
		w.buf = w.buf[:size]
	} else {
		w.buf = append(w.buf, make([]byte, size-int64(len(w.buf)))...)
	}
	return nil
}

// Close writes the buffered content to a temporary sibling and renames it
// over the target.
func (w *writer) Close(ctx context.Context) error {
	if w.closed {
		return vfs.NewError("close", w.file.name, vfs.InvalidState)
	}
	w.closed = true
	if err := aborted(ctx, "close", w.file.name); err != nil {
		return err
	}

	root := w.file.fs.root
	tmp := path.Join(path.Dir(w.file.rel), tempPrefix+randomSuffix())
	if err := root.WriteFile(tmp, w.buf, fileMode); err != nil {
		_ = root.Remove(tmp)
		return classify("commit", w.file.name, err)
	}
	if err := root.Rename(tmp, w.file.rel); err != nil {
		_ = root.Remove(tmp)
		return classify("commit", w.file.name, err)
	}

	vfs.Logger().Debug("osfs commit",
		zap.String("file", w.file.rel),
		zap.Int("size", len(w.buf)))
	w.buf = nil
	return nil
}

func randomSuffix() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
