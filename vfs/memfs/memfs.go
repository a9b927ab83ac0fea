// Package memfs is an in-memory vfs store.
//
// All nodes of one store share a lock. Entry listings are snapshots taken
// when the iterator is opened, sorted by name.
package memfs

import (
	"context"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mizchi/web-shell/vfs"
)

type store struct {
	now     func() time.Time
	maxSize int64
	mu      sync.RWMutex
}

// Option configures a store.
type Option func(*store)

// WithClock sets the source of modification times.
func WithClock(now func() time.Time) Option {
	return func(s *store) { s.now = now }
}

// WithMaxFileSize sets the largest size a file may be written to. Zero or
// less removes the limit.
func WithMaxFileSize(n int64) Option {
	return func(s *store) { s.maxSize = n }
}

// New creates an empty store and returns its root directory.
func New(name string, opts ...Option) vfs.Dir {
	s := &store{now: time.Now, maxSize: vfs.DefaultMaxFileSize}
	for _, o := range opts {
		o(s)
	}
	return &dir{store: s, name: name, children: make(map[string]any)}
}

type dir struct {
	store    *store
	children map[string]any // *dir or *file
	name     string
}

type file struct {
	store   *store
	modTime time.Time
	name    string
	data    []byte
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
		if name[i] == '/' || name[i] == 0 {
			return false
		}
	}
	return true
}

func (d *dir) Name() string { return d.name }

func (d *dir) File(ctx context.Context, name string, create bool) (vfs.File, error) {
	if err := aborted(ctx, "file", name); err != nil {
		return nil, err
	}
	if !validName(name) {
		return nil, vfs.NewError("file", name, vfs.InvalidArgument)
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	switch n := d.children[name].(type) {
	case *file:
		return n, nil
	case *dir:
		return nil, vfs.NewError("file", name, vfs.TypeMismatch)
	}
	if !create {
		return nil, vfs.NewError("file", name, vfs.NotFound)
	}
	f := &file{store: d.store, name: name, modTime: d.store.now()}
	d.children[name] = f
	return f, nil
}

func (d *dir) Dir(ctx context.Context, name string, create bool) (vfs.Dir, error) {
	if err := aborted(ctx, "dir", name); err != nil {
		return nil, err
	}
	if !validName(name) {
		return nil, vfs.NewError("dir", name, vfs.InvalidArgument)
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	switch n := d.children[name].(type) {
	case *dir:
		return n, nil
	case *file:
		return nil, vfs.NewError("dir", name, vfs.TypeMismatch)
	}
	if !create {
		return nil, vfs.NewError("dir", name, vfs.NotFound)
	}
	c := &dir{store: d.store, name: name, children: make(map[string]any)}
	d.children[name] = c
	return c, nil
}

func (d *dir) Entries(ctx context.Context) (vfs.EntryIterator, error) {
	if err := aborted(ctx, "entries", d.name); err != nil {
		return nil, err
	}

	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	entries := make([]vfs.Entry, 0, len(d.children))
	for name, n := range d.children {
		kind := vfs.KindFile
		if _, ok := n.(*dir); ok {
			kind = vfs.KindDir
		}
		entries = append(entries, vfs.Entry{Name: name, Kind: kind})
	}
	slices.SortFunc(entries, func(a, b vfs.Entry) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return &iterator{entries: entries}, nil
}

func (d *dir) Remove(ctx context.Context, name string) error {
	if err := aborted(ctx, "remove", name); err != nil {
		return err
	}

	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	n, ok := d.children[name]
	if !ok {
		return vfs.NewError("remove", name, vfs.NotFound)
	}
	if sub, ok := n.(*dir); ok && len(sub.children) > 0 {
		return vfs.NewError("remove", name, vfs.InvalidModification)
	}
	delete(d.children, name)
	return nil
}

type iterator struct {
	entries []vfs.Entry
	pos     int
	closed  bool
}

func (it *iterator) Next(ctx context.Context) (vfs.Entry, error) {
	if err := aborted(ctx, "next", ""); err != nil {
		return vfs.Entry{}, err
	}
	if it.closed {
		return vfs.Entry{}, vfs.NewError("next", "", vfs.InvalidState)
	}
	if it.pos >= len(it.entries) {
		return vfs.Entry{}, io.EOF
	}
	e := it.entries[it.pos]
	it.pos++
	return e, nil
}

func (it *iterator) Close() error {
	it.closed = true
	return nil
}

func (f *file) Name() string { return f.name }

func (f *file) Stat(ctx context.Context) (vfs.Info, error) {
	if err := aborted(ctx, "stat", f.name); err != nil {
		return vfs.Info{}, err
	}

	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	return vfs.Info{Size: int64(len(f.data)), ModTime: f.modTime}, nil
}

func (f *file) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := aborted(ctx, "read", f.name); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, vfs.NewError("read", f.name, vfs.InvalidArgument)
	}

	f.store.mu.RLock()
	defer f.store.mu.RUnlock()

	if off >= int64(len(f.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) OpenWriter(ctx context.Context, keepExisting bool) (vfs.Writer, error) {
	if err := aborted(ctx, "open writer", f.name); err != nil {
		return nil, err
	}

	w := &writer{file: f}
	if keepExisting {
		f.store.mu.RLock()
		w.buf = slices.Clone(f.data)
		f.store.mu.RUnlock()
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
	if err := vfs.CheckSize("write", w.file.name, end, w.file.store.maxSize); err != nil {
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
	if err := vfs.CheckSize("truncate", w.file.name, size, w.file.store.maxSize); err != nil {
		return err
	}

	if size <= int64(len(w.buf)) {
		w.buf = w.buf[:size]
	} else {
		w.buf = append(w.buf, make([]byte, size-int64(len(w.buf)))...)
	}
	return nil
}

func (w *writer) Close(ctx context.Context) error {
	if w.closed {
		return vfs.NewError("close", w.file.name, vfs.InvalidState)
	}
	w.closed = true
	if err := aborted(ctx, "close", w.file.name); err != nil {
		return err
	}

	f := w.file
	f.store.mu.Lock()
	f.data = w.buf
	f.modTime = f.store.now()
	f.store.mu.Unlock()

	vfs.Logger().Debug("memfs commit",
		zap.String("file", f.name),
		zap.Int("size", len(w.buf)))
	w.buf = nil
	return nil
}
