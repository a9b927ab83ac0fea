package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizchi/web-shell/engine"
	"github.com/mizchi/web-shell/vfs"
	"github.com/mizchi/web-shell/vfs/memfs"
)

type testShell struct {
	*session
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()
	ctx := context.Background()

	eng, err := engine.New(ctx, engine.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })

	sh := &testShell{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	sh.session = newSession(vfs.NewNamespace(memfs.New("workspace")), eng, sh.stdout, sh.stderr)
	t.Cleanup(func() { _ = sh.Close() })
	return sh
}

// exec runs line and returns its status and stdout, resetting both streams.
func (sh *testShell) exec(t *testing.T, line string) (int, string) {
	t.Helper()
	sh.stdout.Reset()
	sh.stderr.Reset()
	status := sh.Exec(context.Background(), line)
	return status, sh.stdout.String()
}

func (sh *testShell) mustExec(t *testing.T, line string) string {
	t.Helper()
	status, out := sh.exec(t, line)
	require.Zero(t, status, "%s: stderr %q", line, sh.stderr.String())
	return out
}

func TestShell_Files(t *testing.T) {
	sh := newTestShell(t)

	out := sh.mustExec(t, `mkdir src && writef src/a.txt "hello world" && cat src/a.txt`)
	require.Equal(t, "hello world\n", out)

	sh.mustExec(t, "touch b.txt src/a.txt")
	require.Equal(t, "hello world\n", sh.mustExec(t, "cat src/a.txt"))
	require.Equal(t, "src/\nb.txt\n", sh.mustExec(t, "ls"))

	sh.mustExec(t, "mkdir dst && cp src/a.txt dst && cp src/a.txt c.txt")
	require.Equal(t, "hello world\n", sh.mustExec(t, "cat dst/a.txt"))
	require.Equal(t, "hello world\n", sh.mustExec(t, "cat c.txt"))

	sh.mustExec(t, "rm c.txt b.txt")
	require.Equal(t, "dst/\nsrc/\n", sh.mustExec(t, "ls"))

	status, _ := sh.exec(t, "rm src")
	require.Equal(t, 1, status)
	require.Contains(t, sh.stderr.String(), "rm: ")

	status, _ = sh.exec(t, "rmdir dst/a.txt")
	require.Equal(t, 1, status)
	require.Contains(t, sh.stderr.String(), "not a directory")

	sh.mustExec(t, "rm dst/a.txt && rmdir dst && rm -r src")
	require.Equal(t, "", sh.mustExec(t, "ls"))
}

func TestShell_Navigation(t *testing.T) {
	sh := newTestShell(t)

	require.Equal(t, "/workspace\n", sh.mustExec(t, "pwd"))
	sh.mustExec(t, "mkdir sub && cd sub")
	require.Equal(t, "/workspace/sub\n", sh.mustExec(t, "pwd"))
	sh.mustExec(t, "..")
	require.Equal(t, "/workspace\n", sh.mustExec(t, "pwd"))

	sh.mustExec(t, "cd /")
	require.Equal(t, "workspace/\n", sh.mustExec(t, "ls"))
	sh.mustExec(t, "cd")
	require.Equal(t, "/workspace\n", sh.mustExec(t, "pwd"))

	status, _ := sh.exec(t, "cd nowhere")
	require.Equal(t, 1, status)
	require.Equal(t, "/workspace\n", sh.mustExec(t, "pwd"))
}

func TestShell_Chaining(t *testing.T) {
	sh := newTestShell(t)

	status, out := sh.exec(t, "cat missing.txt && echo never")
	require.Equal(t, 1, status)
	require.Empty(t, out)

	status, out = sh.exec(t, "cat missing.txt || echo fallback")
	require.Zero(t, status)
	require.Equal(t, "fallback\n", out)

	status, out = sh.exec(t, "echo one || echo two")
	require.Zero(t, status)
	require.Equal(t, "one\n", out)

	status, out = sh.exec(t, "echo one && echo two && cat missing.txt || echo three")
	require.Zero(t, status)
	require.Equal(t, "one\ntwo\nthree\n", out)
}

func TestShell_Errors(t *testing.T) {
	sh := newTestShell(t)

	status, _ := sh.exec(t, "frobnicate")
	require.Equal(t, 127, status)
	require.Equal(t, "frobnicate: command not found\n", sh.stderr.String())

	status, _ = sh.exec(t, "cp a.txt")
	require.Equal(t, 1, status)
	require.Equal(t, "usage: cp <src> <dst>\n", sh.stderr.String())

	status, _ = sh.exec(t, `echo "open`)
	require.Equal(t, 2, status)

	status, _ = sh.exec(t, "missing.wasm")
	require.Equal(t, 127, status)
}

func TestShell_Help(t *testing.T) {
	sh := newTestShell(t)

	out := sh.mustExec(t, "help")
	require.True(t, strings.HasPrefix(out, "webshell: commands\n"))
	for name, b := range builtins {
		require.Contains(t, out, b.usage, name)
	}
}

func TestShell_Mount(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("from host"), 0o644))

	sh := newTestShell(t)
	sh.mustExec(t, "mount /host "+dir)
	require.Equal(t, "/host\n", sh.mustExec(t, "pwd"))
	require.Equal(t, "note.txt\n", sh.mustExec(t, "ls"))
	require.Equal(t, "from host\n", sh.mustExec(t, "cat note.txt"))

	sh.mustExec(t, "writef made.txt written")
	data, err := os.ReadFile(filepath.Join(dir, "made.txt"))
	require.NoError(t, err)
	require.Equal(t, "written", string(data))

	out := sh.mustExec(t, "mount")
	require.Contains(t, out, "/host\t")
	require.Contains(t, out, "/workspace\tworkspace")

	status, _ := sh.exec(t, "mount /x")
	require.Equal(t, 1, status)
}

// Hand-assembled preview1 commands. Every section here is shorter than
// 128 bytes, so lengths fit in one LEB128 byte.

func section(id byte, contents ...byte) []byte {
	return append([]byte{id, byte(len(contents))}, contents...)
}

func str(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// helloWasm writes "hi\n" to stdout with one fd_write.
func helloWasm() []byte {
	return join(
		wasmHeader,
		section(1, 0x02,
			0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
			0x60, 0x00, 0x00),
		section(2, join([]byte{0x01}, str("wasi_snapshot_preview1"), str("fd_write"), []byte{0x00, 0x00})...),
		section(3, 0x01, 0x01),
		section(5, 0x01, 0x00, 0x01),
		section(7, join([]byte{0x02}, str("_start"), []byte{0x00, 0x01}, str("memory"), []byte{0x02, 0x00})...),
		section(10, 0x01, 0x0d,
			0x00,
			0x41, 0x01, // fd 1
			0x41, 0x00, // iovs
			0x41, 0x01, // iovs_len
			0x41, 0x10, // nwritten
			0x10, 0x00,
			0x1a,
			0x0b),
		section(11, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x0b,
			0x08, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 'h', 'i', '\n'),
	)
}

// exitWasm calls proc_exit(code).
func exitWasm(code byte) []byte {
	return join(
		wasmHeader,
		section(1, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00),
		section(2, join([]byte{0x01}, str("wasi_snapshot_preview1"), str("proc_exit"), []byte{0x00, 0x00})...),
		section(3, 0x01, 0x01),
		section(7, join([]byte{0x01}, str("_start"), []byte{0x00, 0x01})...),
		section(10, 0x01, 0x06, 0x00, 0x41, code, 0x10, 0x00, 0x0b),
	)
}

func TestShell_RunWasm(t *testing.T) {
	ctx := context.Background()
	sh := newTestShell(t)

	require.NoError(t, sh.ns.Mkdir(ctx, "bin"))
	require.NoError(t, sh.ns.WriteFile(ctx, "bin/hello.wasm", helloWasm()))
	require.NoError(t, sh.ns.WriteFile(ctx, "bin/fail.wasm", exitWasm(3)))

	require.Equal(t, "hi\n", sh.mustExec(t, "bin/hello.wasm"))

	sh.mustExec(t, "cd bin")
	status, out := sh.exec(t, "hello.wasm extra args && fail.wasm")
	require.Equal(t, 3, status)
	require.Equal(t, "hi\n", out)

	status, out = sh.exec(t, "fail.wasm || echo recovered")
	require.Zero(t, status)
	require.Equal(t, "recovered\n", out)
}

func TestRunLines(t *testing.T) {
	sh := newTestShell(t)
	ctx := context.Background()

	err := runLines(ctx, sh.session, strings.NewReader("mkdir a\ncd a\n\npwd\nexit\necho never\n"))
	require.NoError(t, err)
	require.Equal(t, "/workspace/a\n", sh.stdout.String())

	err = runLines(ctx, sh.session, strings.NewReader("cat nope\n"))
	var exit *exitError
	require.True(t, errors.As(err, &exit))
	require.EqualValues(t, 1, exit.code)
}
