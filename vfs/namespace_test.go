package vfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizchi/web-shell/vfs"
	"github.com/mizchi/web-shell/vfs/memfs"
)

func newNamespace(t *testing.T) *vfs.Namespace {
	t.Helper()
	return vfs.NewNamespace(memfs.New("workspace"))
}

func TestNamespace_Resolve(t *testing.T) {
	ns := newNamespace(t)

	tests := []struct {
		in   string
		want string
	}{
		{"/a/b/../c", "/a/c"},
		{"~", "/workspace"},
		{"~/notes", "/workspace/notes"},
		{"src", "/workspace/src"},
		{"..", "/"},
		{"../../..", "/"},
	}
	for _, tt := range tests {
		got, err := ns.Resolve(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	_, err := ns.Resolve("~bob")
	require.Error(t, err)
}

func TestNamespace_FileLifecycle(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)

	require.NoError(t, ns.Mkdir(ctx, "src"))
	require.NoError(t, ns.WriteFile(ctx, "src/main.txt", []byte("hello")))
	require.True(t, ns.Exists(ctx, "/workspace/src/main.txt"))

	data, err := ns.ReadFile(ctx, "~/src/main.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	st, err := ns.Stat(ctx, "src/main.txt")
	require.NoError(t, err)
	require.Equal(t, vfs.KindFile, st.Kind)
	require.EqualValues(t, 5, st.Size)

	require.NoError(t, ns.WriteFile(ctx, "src/main.txt", []byte("hi")))
	data, _ = ns.ReadFile(ctx, "src/main.txt")
	require.Equal(t, "hi", string(data), "WriteFile replaces content")

	require.ErrorIs(t, ns.Remove(ctx, "src"), vfs.InvalidModification)
	require.NoError(t, ns.Remove(ctx, "src/main.txt"))
	require.NoError(t, ns.Remove(ctx, "src"))
	require.False(t, ns.Exists(ctx, "src"))
}

func TestNamespace_ReadDirOrdering(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)

	require.NoError(t, ns.WriteFile(ctx, "b.txt", nil))
	require.NoError(t, ns.WriteFile(ctx, "a.txt", nil))
	require.NoError(t, ns.Mkdir(ctx, "zdir"))

	entries, err := ns.ReadDir(ctx, ".")
	require.NoError(t, err)
	require.Equal(t, []vfs.Entry{
		{Name: "zdir", Kind: vfs.KindDir},
		{Name: "a.txt", Kind: vfs.KindFile},
		{Name: "b.txt", Kind: vfs.KindFile},
	}, entries)

	_, err = ns.ReadDir(ctx, "a.txt")
	require.ErrorIs(t, err, vfs.TypeMismatch)
}

func TestNamespace_MountsAndRoot(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)

	data := memfs.New("data")
	require.NoError(t, ns.Mount("/mnt/data", data))
	require.NoError(t, ns.WriteFile(ctx, "/mnt/data/x", []byte("1")))

	entries, err := ns.ReadDir(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, []vfs.Entry{
		{Name: "mnt", Kind: vfs.KindDir},
		{Name: "workspace", Kind: vfs.KindDir},
	}, entries)

	st, err := ns.Stat(ctx, "/mnt")
	require.NoError(t, err)
	require.Equal(t, vfs.KindDir, st.Kind)

	require.NoError(t, ns.Chdir(ctx, "/mnt/data"))
	require.Equal(t, "/mnt/data", ns.Cwd())
	got, err := ns.ReadFile(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, "1", string(got))

	mounts := ns.Mounts()
	require.Len(t, mounts, 2)
	require.Equal(t, "/mnt/data", mounts[0].Path)
	require.Equal(t, "/workspace", mounts[1].Path)

	_, err = ns.ReadDir(ctx, "/nowhere")
	require.ErrorIs(t, err, vfs.NotFound)
	require.ErrorIs(t, ns.Remove(ctx, "/mnt/data"), vfs.NotAllowed)
	require.Error(t, ns.Mount("/", data))
}

func TestNamespace_NestedMount(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)
	require.NoError(t, ns.WriteFile(ctx, "/workspace/datafile", []byte("outer")))

	inner := memfs.New("inner")
	require.NoError(t, ns.Mount("/workspace/data", inner))
	require.NoError(t, ns.WriteFile(ctx, "/workspace/data/f", []byte("inner")))

	f, err := inner.File(ctx, "f", false)
	require.NoError(t, err)
	got, err := vfs.ReadAll(ctx, f)
	require.NoError(t, err)
	require.Equal(t, "inner", string(got))

	got, err = ns.ReadFile(ctx, "/workspace/datafile")
	require.NoError(t, err)
	require.Equal(t, "outer", string(got))

	_, err = ns.Stat(ctx, "/workspacex")
	require.ErrorIs(t, err, vfs.NotFound)
}

func TestNamespace_Chdir(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)
	require.NoError(t, ns.WriteFile(ctx, "f", nil))

	require.ErrorIs(t, ns.Chdir(ctx, "f"), vfs.TypeMismatch)
	require.ErrorIs(t, ns.Chdir(ctx, "missing"), vfs.NotFound)
	require.NoError(t, ns.Chdir(ctx, "/"))
	require.Equal(t, "/", ns.Cwd())
	require.NoError(t, ns.Chdir(ctx, "~"))
	require.Equal(t, "/workspace", ns.Cwd())
}

func TestNamespace_RemoveAll(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)

	require.NoError(t, ns.Mkdir(ctx, "tree"))
	require.NoError(t, ns.Mkdir(ctx, "tree/sub"))
	require.NoError(t, ns.WriteFile(ctx, "tree/sub/leaf", []byte("x")))
	require.NoError(t, ns.WriteFile(ctx, "tree/top", []byte("y")))

	require.NoError(t, ns.RemoveAll(ctx, "tree"))
	require.False(t, ns.Exists(ctx, "tree"))

	require.NoError(t, ns.WriteFile(ctx, "single", nil))
	require.NoError(t, ns.RemoveAll(ctx, "single"))
	require.False(t, ns.Exists(ctx, "single"))
}

func TestNamespace_OpenDir(t *testing.T) {
	ctx := context.Background()
	ns := newNamespace(t)

	require.NoError(t, ns.Mkdir(ctx, "src"))
	require.NoError(t, ns.WriteFile(ctx, "src/a.txt", []byte("a")))

	d, err := ns.OpenDir(ctx, "src")
	require.NoError(t, err)
	entries, err := vfs.Collect(ctx, d)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].Name)

	_, err = ns.OpenDir(ctx, "src/a.txt")
	require.ErrorIs(t, err, vfs.TypeMismatch)

	_, err = ns.OpenDir(ctx, "/")
	require.ErrorIs(t, err, vfs.NotFound)
}
