package memfs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mizchi/web-shell/vfs"
)

func TestDir_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	root := New("root")

	_, err := root.File(ctx, "a.txt", false)
	require.ErrorIs(t, err, vfs.NotFound)

	f, err := root.File(ctx, "a.txt", true)
	require.NoError(t, err)
	require.Equal(t, "a.txt", f.Name())

	again, err := root.File(ctx, "a.txt", false)
	require.NoError(t, err)
	require.Same(t, f, again)

	_, err = root.Dir(ctx, "a.txt", true)
	require.ErrorIs(t, err, vfs.TypeMismatch)

	sub, err := root.Dir(ctx, "sub", true)
	require.NoError(t, err)
	_, err = root.File(ctx, "sub", false)
	require.ErrorIs(t, err, vfs.TypeMismatch)
	require.Equal(t, "sub", sub.Name())
}

func TestDir_InvalidNames(t *testing.T) {
	ctx := context.Background()
	root := New("root")

	for _, name := range []string{"", ".", "..", "a/b"} {
		_, err := root.File(ctx, name, true)
		require.ErrorIs(t, err, vfs.InvalidArgument, name)
	}
}

func TestWriter_CommitOnClose(t *testing.T) {
	ctx := context.Background()
	root := New("root")
	f, err := root.File(ctx, "data", true)
	require.NoError(t, err)

	w, err := f.OpenWriter(ctx, true)
	require.NoError(t, err)
	_, err = w.WriteAt(ctx, []byte("hello"), 0)
	require.NoError(t, err)

	info, err := f.Stat(ctx)
	require.NoError(t, err)
	require.Zero(t, info.Size, "uncommitted data must be invisible")

	require.NoError(t, w.Close(ctx))

	data, err := vfs.ReadAll(ctx, f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = w.WriteAt(ctx, []byte("x"), 0)
	require.ErrorIs(t, err, vfs.InvalidState)
}

func TestWriter_KeepExistingAndTruncate(t *testing.T) {
	ctx := context.Background()
	f, _ := New("root").File(ctx, "data", true)
	require.NoError(t, vfs.WriteAll(ctx, f, []byte("hello world")))

	w, err := f.OpenWriter(ctx, true)
	require.NoError(t, err)
	_, err = w.WriteAt(ctx, []byte("J"), 0)
	require.NoError(t, err)
	require.NoError(t, w.Truncate(ctx, 5))
	require.NoError(t, w.Truncate(ctx, 7))
	require.NoError(t, w.Close(ctx))

	data, _ := vfs.ReadAll(ctx, f)
	require.Equal(t, "Jello\x00\x00", string(data))

	w, _ = f.OpenWriter(ctx, false)
	_, _ = w.WriteAt(ctx, []byte("x"), 2)
	require.NoError(t, w.Close(ctx))
	data, _ = vfs.ReadAll(ctx, f)
	require.Equal(t, "\x00\x00x", string(data))
}

func TestWriter_MaxFileSize(t *testing.T) {
	ctx := context.Background()
	f, _ := New("root", WithMaxFileSize(16)).File(ctx, "data", true)

	w, err := f.OpenWriter(ctx, false)
	require.NoError(t, err)
	_, err = w.WriteAt(ctx, []byte("x"), 1<<62)
	require.ErrorIs(t, err, vfs.TooLarge)
	_, err = w.WriteAt(ctx, []byte("x"), 1<<63-1)
	require.ErrorIs(t, err, vfs.TooLarge)
	require.ErrorIs(t, w.Truncate(ctx, 17), vfs.TooLarge)
	_, err = w.WriteAt(ctx, []byte("x"), -1)
	require.ErrorIs(t, err, vfs.InvalidArgument)

	_, err = w.WriteAt(ctx, []byte("0123456789abcdef"), 0)
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))
	info, _ := f.Stat(ctx)
	require.EqualValues(t, 16, info.Size)
}

func TestFile_ReadAtEOF(t *testing.T) {
	ctx := context.Background()
	f, _ := New("root").File(ctx, "data", true)
	require.NoError(t, vfs.WriteAll(ctx, f, []byte("abc")))

	buf := make([]byte, 8)
	n, err := f.ReadAt(ctx, buf, 1)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 2, n)
	require.Equal(t, "bc", string(buf[:n]))

	n, err = f.ReadAt(ctx, buf, 10)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, n)
}

func TestFile_ModTime(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f, _ := New("root", WithClock(func() time.Time { return stamp })).File(ctx, "data", true)

	require.NoError(t, vfs.WriteAll(ctx, f, []byte("x")))
	info, err := f.Stat(ctx)
	require.NoError(t, err)
	require.True(t, info.ModTime.Equal(stamp))
}

func TestDir_EntriesSorted(t *testing.T) {
	ctx := context.Background()
	root := New("root")
	_, _ = root.File(ctx, "b.txt", true)
	_, _ = root.Dir(ctx, "a", true)
	_, _ = root.File(ctx, "c.txt", true)

	entries, err := vfs.Collect(ctx, root)
	require.NoError(t, err)
	require.Equal(t, []vfs.Entry{
		{Name: "a", Kind: vfs.KindDir},
		{Name: "b.txt", Kind: vfs.KindFile},
		{Name: "c.txt", Kind: vfs.KindFile},
	}, entries)
}

func TestDir_Remove(t *testing.T) {
	ctx := context.Background()
	root := New("root")
	sub, _ := root.Dir(ctx, "sub", true)
	_, _ = sub.File(ctx, "inner", true)

	require.ErrorIs(t, root.Remove(ctx, "sub"), vfs.InvalidModification)
	require.ErrorIs(t, root.Remove(ctx, "missing"), vfs.NotFound)

	require.NoError(t, sub.Remove(ctx, "inner"))
	require.NoError(t, root.Remove(ctx, "sub"))

	_, err := root.Dir(ctx, "sub", false)
	require.ErrorIs(t, err, vfs.NotFound)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	root := New("root")
	cancel()

	_, err := root.File(ctx, "x", true)
	require.ErrorIs(t, err, vfs.Aborted)
	require.ErrorIs(t, err, context.Canceled)

	c, ok := vfs.CategoryOf(err)
	require.True(t, ok)
	require.Equal(t, vfs.Aborted, c)
}
