package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/mizchi/web-shell/engine"
	"github.com/mizchi/web-shell/vfs"
	"github.com/mizchi/web-shell/vfs/osfs"
	"github.com/mizchi/web-shell/wasi/preview1"
)

var errUsage = errors.New("usage")

type builtin struct {
	run   func(ctx context.Context, s *session, args []string) error
	usage string
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"cd":     {cmdCd, "cd [dir]"},
		"..":     {cmdCdUp, ".."},
		"pwd":    {cmdPwd, "pwd"},
		"ls":     {cmdLs, "ls [dir]"},
		"cat":    {cmdCat, "cat <file>..."},
		"echo":   {cmdEcho, "echo [text]..."},
		"mkdir":  {cmdMkdir, "mkdir <dir>..."},
		"touch":  {cmdTouch, "touch <file>..."},
		"rm":     {cmdRm, "rm [-r] <path>..."},
		"rmdir":  {cmdRmdir, "rmdir <dir>..."},
		"cp":     {cmdCp, "cp <src> <dst>"},
		"writef": {cmdWritef, "writef <file> <content>"},
		"mount":  {cmdMount, "mount [<guest> <hostdir>]"},
		"help":   {cmdHelp, "help"},
	}
}

// session is one shell: a namespace, the engine that runs .wasm files
// from it, and the streams commands write to.
type session struct {
	ns     *vfs.Namespace
	engine *engine.Engine
	env    map[string]string
	stdout io.Writer
	stderr io.Writer
	hosts  []*osfs.FS
}

func newSession(ns *vfs.Namespace, eng *engine.Engine, stdout, stderr io.Writer) *session {
	return &session{
		ns:     ns,
		engine: eng,
		env:    map[string]string{"HOME": vfs.Workspace},
		stdout: stdout,
		stderr: stderr,
	}
}

// Close releases host directories mounted from the shell.
func (s *session) Close() error {
	var first error
	for _, fsys := range s.hosts {
		if err := fsys.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.hosts = nil
	return first
}

func (s *session) println(a ...any) {
	fmt.Fprintln(s.stdout, a...)
}

// Exec runs one input line and returns the status of the last command
// run. Commands joined by && run while the previous one succeeds, and
// commands joined by || run while it fails.
func (s *session) Exec(ctx context.Context, line string) int {
	chain, err := parseLine(line)
	if err != nil {
		fmt.Fprintf(s.stderr, "webshell: %v\n", err)
		return 2
	}

	status := 0
	for i, c := range chain {
		status = s.run(ctx, c.args)
		if i == len(chain)-1 {
			break
		}
		if (c.op == "&&") != (status == 0) {
			break
		}
	}
	return status
}

func (s *session) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return 0
	}
	name := args[0]

	b, ok := builtins[name]
	if !ok {
		if path.Ext(name) == ".wasm" {
			return s.runWasm(ctx, name, args[1:])
		}
		fmt.Fprintf(s.stderr, "%s: command not found\n", name)
		return 127
	}

	err := b.run(ctx, s, args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(s.stderr, "usage: %s\n", b.usage)
	default:
		fmt.Fprintf(s.stderr, "%s: %v\n", name, err)
	}
	return 1
}

// runWasm runs a module read from the namespace. Every mount is preopened
// at its namespace path and the working directory is preopened as ".".
func (s *session) runWasm(ctx context.Context, name string, args []string) int {
	wasm, err := s.ns.ReadFile(ctx, name)
	if err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", name, err)
		return 127
	}

	env := maps.Clone(s.env)
	env["PWD"] = s.ns.Cwd()

	b := preview1.New().
		WithArgs(append([]string{name}, args...)...).
		WithEnv(env).
		WithStdin(bytes.NewReader(nil)).
		WithStdout(s.stdout).
		WithStderr(s.stderr)
	for _, m := range s.ns.Mounts() {
		b.WithPreopen(m.Path, m.Dir)
	}
	if cwd, err := s.ns.OpenDir(ctx, "."); err == nil {
		b.WithPreopen(".", cwd)
	}

	host, err := b.Build(ctx)
	if err != nil {
		fmt.Fprintf(s.stderr, "%s: %v\n", name, err)
		return 1
	}
	code, err := s.engine.Run(ctx, wasm, host)
	if cerr := host.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		cliLogger.Debug("wasm command failed", zap.String("module", name), zap.Error(err))
		fmt.Fprintf(s.stderr, "%s: %v\n", name, err)
		if code == 0 {
			return 1
		}
	}
	return int(code)
}

func cmdCd(ctx context.Context, s *session, args []string) error {
	target := "~"
	if len(args) > 0 {
		target = args[0]
	}
	return s.ns.Chdir(ctx, target)
}

func cmdCdUp(ctx context.Context, s *session, _ []string) error {
	return s.ns.Chdir(ctx, "..")
}

func cmdPwd(_ context.Context, s *session, _ []string) error {
	s.println(s.ns.Cwd())
	return nil
}

func cmdLs(ctx context.Context, s *session, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	entries, err := s.ns.ReadDir(ctx, target)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Kind == vfs.KindDir {
			s.println(e.Name + "/")
		} else {
			s.println(e.Name)
		}
	}
	return nil
}

func cmdCat(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, p := range args {
		data, err := s.ns.ReadFile(ctx, p)
		if err != nil {
			return err
		}
		if _, err := s.stdout.Write(data); err != nil {
			return err
		}
		if len(data) > 0 && data[len(data)-1] != '\n' {
			s.println()
		}
	}
	return nil
}

func cmdEcho(_ context.Context, s *session, args []string) error {
	s.println(strings.Join(args, " "))
	return nil
}

func cmdMkdir(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, p := range args {
		if err := s.ns.Mkdir(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func cmdTouch(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, p := range args {
		if s.ns.Exists(ctx, p) {
			continue
		}
		if err := s.ns.WriteFile(ctx, p, nil); err != nil {
			return err
		}
	}
	return nil
}

func cmdRm(ctx context.Context, s *session, args []string) error {
	recursive := false
	if len(args) > 0 && (args[0] == "-r" || args[0] == "-rf") {
		recursive, args = true, args[1:]
	}
	if len(args) == 0 {
		return errUsage
	}
	for _, p := range args {
		var err error
		if recursive {
			err = s.ns.RemoveAll(ctx, p)
		} else {
			err = s.ns.Remove(ctx, p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func cmdRmdir(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, p := range args {
		st, err := s.ns.Stat(ctx, p)
		if err != nil {
			return err
		}
		if st.Kind != vfs.KindDir {
			return fmt.Errorf("%s: not a directory", p)
		}
		if err := s.ns.Remove(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func cmdCp(ctx context.Context, s *session, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	data, err := s.ns.ReadFile(ctx, args[0])
	if err != nil {
		return err
	}
	dst := args[1]
	if st, err := s.ns.Stat(ctx, dst); err == nil && st.Kind == vfs.KindDir {
		dst = path.Join(dst, path.Base(args[0]))
	}
	return s.ns.WriteFile(ctx, dst, data)
}

func cmdWritef(ctx context.Context, s *session, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	return s.ns.WriteFile(ctx, args[0], []byte(strings.Join(args[1:], " ")))
}

func cmdMount(ctx context.Context, s *session, args []string) error {
	if len(args) == 0 {
		for _, m := range s.ns.Mounts() {
			s.println(m.Path + "\t" + m.Dir.Name())
		}
		return nil
	}
	if len(args) != 2 {
		return errUsage
	}

	fsys, err := osfs.Open(args[1])
	if err != nil {
		return err
	}
	if err := s.ns.Mount(args[0], fsys.Root()); err != nil {
		_ = fsys.Close()
		return err
	}
	s.hosts = append(s.hosts, fsys)
	return s.ns.Chdir(ctx, args[0])
}

func cmdHelp(_ context.Context, s *session, _ []string) error {
	s.println("webshell: commands")
	for _, name := range slices.Sorted(maps.Keys(builtins)) {
		s.println("  " + builtins[name].usage)
	}
	s.println("  <file>.wasm [args...]")
	return nil
}
