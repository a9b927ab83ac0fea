package preview1

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mizchi/web-shell/vfs"
)

// Handle is an open descriptor: a *File or a *Directory.
type Handle interface {
	// Path is the virtual path the handle was opened at, preopen prefix
	// included.
	Path() string
	FileType() FileType
	AsFile() (*File, error)
	AsDir() (*Directory, error)
	close(ctx context.Context) error
}

// Want selects which kinds GetFileOrDir may return.
type Want uint8

const (
	WantFile Want = 1 << iota
	WantDir
	WantAny = WantFile | WantDir
)

// File is an open regular file. Reads see committed content only, so any
// pending write session is committed before reading.
type File struct {
	file   vfs.File
	writer vfs.Writer
	path   string
	pos    int64
}

func newFile(path string, f vfs.File) *File {
	return &File{path: path, file: f}
}

func (f *File) Path() string { return f.path }
func (f *File) FileType() FileType { return FileTypeRegularFile }
func (f *File) AsFile() (*File, error) { return f, nil }
func (f *File) AsDir() (*Directory, error) { return nil, fail(ErrnoNotDirectory) }
func (f *File) close(ctx context.Context) error { return f.Flush(ctx) }

// Position is the read/write cursor.
func (f *File) Position() int64 { return f.pos }

func (f *File) openWriter(ctx context.Context) (vfs.Writer, error) {
	if f.writer == nil {
		w, err := f.file.OpenWriter(ctx, true)
		if err != nil {
			return nil, err
		}
		f.writer = w
	}
	return f.writer, nil
}

// Flush commits the open write session, if any.
func (f *File) Flush(ctx context.Context) error {
	if f.writer == nil {
		return nil
	}
	w := f.writer
	f.writer = nil
	return w.Close(ctx)
}

// Read fills p from the cursor and advances it by the bytes read. A short
// count means end of file.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if err := f.Flush(ctx); err != nil {
		return 0, err
	}
	n, err := f.file.ReadAt(ctx, p, f.pos)
	if err != nil && !stderrors.Is(err, io.EOF) {
		return 0, err
	}
	f.pos += int64(n)
	return n, nil
}

// Write stores p at the cursor and advances it.
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	w, err := f.openWriter(ctx)
	if err != nil {
		return 0, err
	}
	n, err := w.WriteAt(ctx, p, f.pos)
	f.pos += int64(n)
	return n, err
}

// SetSize truncates or zero-extends the file. The change is committed with
// the rest of the write session.
func (f *File) SetSize(ctx context.Context, size int64) error {
	w, err := f.openWriter(ctx)
	if err != nil {
		return err
	}
	return w.Truncate(ctx, size)
}

// Stat commits pending writes and describes the file.
func (f *File) Stat(ctx context.Context) (vfs.Info, error) {
	if err := f.Flush(ctx); err != nil {
		return vfs.Info{}, err
	}
	return f.file.Stat(ctx)
}

// Seek moves the cursor and returns its new value.
func (f *File) Seek(ctx context.Context, offset int64, whence Whence) (int64, error) {
	var base int64
	switch whence {
	case WhenceSet:
	case WhenceCur:
		base = f.pos
	case WhenceEnd:
		info, err := f.Stat(ctx)
		if err != nil {
			return 0, err
		}
		base = info.Size
	default:
		return 0, fail(ErrnoInvalidArgument)
	}
	next := base + offset
	if next < 0 {
		return 0, fail(ErrnoInvalidArgument)
	}
	f.pos = next
	return next, nil
}

// Directory is an open directory. It keeps the cursor of the last listing
// so that paged reads continue where the previous page stopped.
type Directory struct {
	dir    vfs.Dir
	cursor *EntryCursor
	path   string
}

func newDirectory(path string, d vfs.Dir) *Directory {
	return &Directory{path: path, dir: d}
}

func (d *Directory) Path() string { return d.path }
func (d *Directory) FileType() FileType { return FileTypeDirectory }
func (d *Directory) AsFile() (*File, error) { return nil, fail(ErrnoIsDirectory) }
func (d *Directory) AsDir() (*Directory, error) { return d, nil }
func (d *Directory) close(context.Context) error {
	d.Drop()
	return nil
}

// Drop releases the active listing.
func (d *Directory) Drop() {
	if d.cursor != nil {
		d.cursor.close()
		d.cursor = nil
	}
}

// Entries returns a cursor positioned at start. The current cursor is
// reused when it is already there; otherwise a new listing is opened and
// the first start entries are skipped on the first Next.
func (d *Directory) Entries(ctx context.Context, start uint64) (*EntryCursor, error) {
	if d.cursor != nil && d.cursor.Position() == start {
		return d.cursor, nil
	}
	d.Drop()
	it, err := d.dir.Entries(ctx)
	if err != nil {
		return nil, err
	}
	d.cursor = newEntryCursor(it, start)
	return d.cursor, nil
}

func isTypeMismatch(err error) bool {
	return stderrors.Is(err, vfs.TypeMismatch)
}

// split resolves . and .. in p lexically and walks to the parent of the
// final component. name is empty when p names d itself.
func (d *Directory) split(ctx context.Context, p string) (vfs.Dir, string, error) {
	var parts []string
	for _, item := range strings.Split(p, "/") {
		switch item {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return nil, "", fail(ErrnoNotCapable)
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, item)
		}
	}
	if len(parts) == 0 {
		return d.dir, "", nil
	}

	parent := d.dir
	for _, item := range parts[:len(parts)-1] {
		next, err := parent.Dir(ctx, item, false)
		if err != nil {
			if isTypeMismatch(err) {
				return nil, "", fail(ErrnoNotDirectory)
			}
			return nil, "", err
		}
		parent = next
	}
	return parent, parts[len(parts)-1], nil
}

// GetFileOrDir resolves p below d honoring the open flags. Exactly one of
// the returned file and directory is non-nil on success.
func (d *Directory) GetFileOrDir(ctx context.Context, p string, want Want, oflags OFlags) (vfs.File, vfs.Dir, error) {
	parent, name, err := d.split(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	if name == "" {
		switch {
		case want&WantDir == 0:
			return nil, nil, fail(ErrnoIsDirectory)
		case oflags&OFlagCreate != 0 && oflags&OFlagExclusive != 0:
			return nil, nil, fail(ErrnoAlreadyExists)
		case oflags&OFlagTruncate != 0:
			return nil, nil, fail(ErrnoIsDirectory)
		}
		return nil, parent, nil
	}

	if oflags&OFlagDirectory != 0 {
		if want&WantDir == 0 {
			return nil, nil, fail(ErrnoInvalidArgument)
		}
		want = WantDir
	}

	open := func(create bool) (vfs.File, vfs.Dir, error) {
		if want&WantFile != 0 {
			f, err := parent.File(ctx, name, create)
			if err == nil {
				return f, nil, nil
			}
			if !isTypeMismatch(err) {
				return nil, nil, err
			}
			if want&WantDir == 0 {
				Logger().Warn("expected a file, found a directory", zap.String("path", p), zap.Error(err))
				return nil, nil, fail(ErrnoIsDirectory)
			}
		}
		sub, err := parent.Dir(ctx, name, create)
		if err != nil {
			if isTypeMismatch(err) {
				Logger().Warn("expected a directory, found a file", zap.String("path", p), zap.Error(err))
				return nil, nil, fail(ErrnoNotDirectory)
			}
			return nil, nil, err
		}
		return nil, sub, nil
	}

	create := oflags&OFlagCreate != 0
	if create && oflags&OFlagExclusive != 0 {
		if _, _, err := open(false); err == nil {
			return nil, nil, fail(ErrnoAlreadyExists)
		}
	}
	f, sub, err := open(create)
	if err != nil {
		return nil, nil, err
	}

	if oflags&OFlagTruncate != 0 {
		if sub != nil {
			return nil, nil, fail(ErrnoIsDirectory)
		}
		w, err := f.OpenWriter(ctx, false)
		if err != nil {
			return nil, nil, err
		}
		if err := w.Close(ctx); err != nil {
			return nil, nil, err
		}
	}
	return f, sub, nil
}

// Delete removes the file or empty directory at p below d.
func (d *Directory) Delete(ctx context.Context, p string) error {
	parent, name, err := d.split(ctx, p)
	if err != nil {
		return err
	}
	if name == "" {
		return fail(ErrnoAccessDenied)
	}
	return parent.Remove(ctx, name)
}
