package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mizchi/web-shell/engine"
	"github.com/mizchi/web-shell/wasi/preview1"
)

func runCommand() *cobra.Command {
	var dirs dirMounts
	var mems []string
	var env []string
	var stdinPath string
	var memoryPages uint32

	command := &cobra.Command{
		Use:   "run [path to module] [args...]",
		Short: "Run a WASI preview1 command",
		Long:  "Run a WebAssembly command module with the given directories preopened.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			envMap, err := parseEnv(env)
			if err != nil {
				return err
			}

			st, err := openStores(dirs.values, mems)
			if err != nil {
				return err
			}
			defer st.Close()

			var stdin io.Reader = os.Stdin
			if stdinPath != "" && stdinPath != "-" {
				f, err := os.Open(stdinPath)
				if err != nil {
					return err
				}
				defer f.Close()
				stdin = f
			}

			argv := append([]string{filepath.Base(args[0])}, args[1:]...)
			b := preview1.New().
				WithArgs(argv...).
				WithEnv(envMap).
				WithStdin(stdin).
				WithStdout(cmd.OutOrStdout()).
				WithStderr(cmd.ErrOrStderr())
			for _, s := range st.list {
				b.WithPreopen(s.guest, s.dir)
			}
			host, err := b.Build(ctx)
			if err != nil {
				return err
			}

			eng, err := engine.New(ctx, engine.Config{
				MemoryLimitPages:   memoryPages,
				CloseOnContextDone: true,
			})
			if err != nil {
				return err
			}
			defer eng.Close(ctx)

			code, err := eng.Run(ctx, wasm, host)
			if cerr := host.Close(ctx); err == nil && cerr != nil {
				err = fmt.Errorf("close host: %w", cerr)
			}
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	command.Flags().SetInterspersed(false)
	command.Flags().VarP(&dirs, "dir", "d", "host directory to preopen in the form (guest=)host")
	command.Flags().StringArrayVarP(&mems, "mem", "m", nil, "preopen an empty in-memory directory at this guest path")
	command.Flags().StringArrayVarP(&env, "env", "e", nil, "environment variable in the form K=V")
	command.Flags().StringVar(&stdinPath, "stdin", "", "file to use as standard input (default: the process's stdin)")
	command.Flags().Uint32Var(&memoryPages, "memory-pages", 0, "maximum guest memory in 64KiB pages")

	return command
}
