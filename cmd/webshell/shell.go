package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mizchi/web-shell/engine"
	"github.com/mizchi/web-shell/vfs"
	"github.com/mizchi/web-shell/vfs/memfs"
	"github.com/mizchi/web-shell/vfs/osfs"
)

func shellCommand() *cobra.Command {
	var dirs dirMounts
	var mems []string
	var workspace string
	var script string

	command := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		Long: "Start a shell over a virtual namespace. The workspace is mounted at " +
			vfs.Workspace + "; .wasm files in the namespace run as commands.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ws := memfs.New("workspace")
			if workspace != "" {
				fsys, err := osfs.Open(workspace)
				if err != nil {
					return err
				}
				defer fsys.Close()
				ws = fsys.Root()
			}
			ns := vfs.NewNamespace(ws)

			st, err := openStores(dirs.values, mems)
			if err != nil {
				return err
			}
			defer st.Close()
			for _, s := range st.list {
				if err := ns.Mount(s.guest, s.dir); err != nil {
					return err
				}
			}

			eng, err := engine.New(ctx, engine.Config{CloseOnContextDone: true})
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			sess := newSession(ns, eng, cmd.OutOrStdout(), cmd.ErrOrStderr())
			defer sess.Close()

			if script != "" {
				if status := sess.Exec(ctx, script); status != 0 {
					return &exitError{code: uint32(status)}
				}
				return nil
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return runLines(ctx, sess, cmd.InOrStdin())
			}
			return runInteractive(ctx, sess)
		},
	}

	command.Flags().VarP(&dirs, "dir", "d", "host directory to mount in the form (path=)host")
	command.Flags().StringArrayVarP(&mems, "mem", "m", nil, "mount an empty in-memory directory at this path")
	command.Flags().StringVarP(&workspace, "workspace", "w", "", "host directory to use as "+vfs.Workspace)
	command.Flags().StringVarP(&script, "command", "c", "", "run this line and exit")

	return command
}

// runLines reads commands from r until EOF or exit. It is used when the
// shell is not attached to a terminal.
func runLines(ctx context.Context, s *session, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	status := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" {
			break
		}
		status = s.Exec(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	if status != 0 {
		return &exitError{code: uint32(status)}
	}
	return nil
}
