package vfs

import (
	"context"
	"errors"
	"io"
	"time"
)

// Kind is the type of a directory entry.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	}
	return "unknown"
}

// Entry is one child of a directory.
type Entry struct {
	Name string
	Kind Kind
}

// Info describes a file's committed content.
type Info struct {
	ModTime time.Time
	Size    int64
}

// Dir is a directory in a backing store.
//
// File and Dir look up a direct child. With create set, a missing child is
// created; without it, a missing child fails with NotFound. A child of the
// other kind fails with TypeMismatch either way.
type Dir interface {
	Name() string
	File(ctx context.Context, name string, create bool) (File, error)
	Dir(ctx context.Context, name string, create bool) (Dir, error)
	Entries(ctx context.Context) (EntryIterator, error)
	// Remove deletes a file or an empty directory. A non-empty directory
	// fails with InvalidModification.
	Remove(ctx context.Context, name string) error
}

// File is a regular file in a backing store.
type File interface {
	Name() string
	Stat(ctx context.Context) (Info, error)
	// ReadAt follows io.ReaderAt: a short read at end of file returns io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// OpenWriter starts a write session. With keepExisting the session
	// starts from the current content, otherwise from empty.
	OpenWriter(ctx context.Context, keepExisting bool) (Writer, error)
}

// Writer is a write session. Nothing written is visible through ReadAt
// until Close commits it.
type Writer interface {
	WriteAt(ctx context.Context, p []byte, off int64) (int, error)
	Truncate(ctx context.Context, size int64) error
	Close(ctx context.Context) error
}

// EntryIterator streams the children of a directory once, forward only.
// Next returns io.EOF after the last entry.
type EntryIterator interface {
	Next(ctx context.Context) (Entry, error)
	Close() error
}

// DefaultMaxFileSize is the largest file a store lets a writer grow to
// unless configured otherwise.
const DefaultMaxFileSize int64 = 1 << 30

// CheckSize fails with TooLarge when a write session would grow past
// limit bytes. A limit of zero or less means no limit.
func CheckSize(op, name string, size, limit int64) error {
	if limit > 0 && size > limit {
		return NewError(op, name, TooLarge)
	}
	return nil
}

// ReadAll reads the whole committed content of f.
func ReadAll(ctx context.Context, f File) ([]byte, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size)
	n, err := f.ReadAt(ctx, buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// WriteAll replaces the content of f with data and commits it.
func WriteAll(ctx context.Context, f File, data []byte) error {
	w, err := f.OpenWriter(ctx, false)
	if err != nil {
		return err
	}
	if _, err := w.WriteAt(ctx, data, 0); err != nil {
		_ = w.Close(ctx)
		return err
	}
	return w.Close(ctx)
}

// Collect drains an entry iterator.
func Collect(ctx context.Context, d Dir) ([]Entry, error) {
	it, err := d.Entries(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry
	for {
		e, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, e)
	}
}
