package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mizchi/web-shell/engine"
	"github.com/mizchi/web-shell/vfs"
	"github.com/mizchi/web-shell/wasi/preview1"
)

var version = "<unknown>"

var cliLogger = zap.NewNop()

// exitError carries a guest's non-zero exit status out of a command.
type exitError struct {
	code uint32
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func configureCLI() *cobra.Command {
	var verbose bool
	var logFile string
	var logger *zap.Logger

	rootCommand := &cobra.Command{
		Use:           "webshell",
		Short:         "WASI preview1 runner and shell",
		Long:          "webshell - run WASI preview1 commands against mounted directories",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose, logFile)
			if err != nil {
				return err
			}
			logger, cliLogger = l, l
			preview1.SetLogger(l)
			engine.SetLogger(l)
			vfs.SetLogger(l)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
	}

	rootCommand.AddCommand(runCommand())
	rootCommand.AddCommand(shellCommand())

	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log host calls to stderr")
	rootCommand.PersistentFlags().StringVar(&logFile, "log", "", "write logs to this file")

	return rootCommand
}

// newLogger builds the development logger used by --verbose. --log alone
// also enables it, writing to the file instead of stderr.
func newLogger(verbose bool, logFile string) (*zap.Logger, error) {
	if !verbose && logFile == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	if logFile != "" {
		cfg.OutputPaths = []string{logFile}
		cfg.ErrorOutputPaths = []string{logFile}
	}
	return cfg.Build()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := configureCLI().ExecuteContext(ctx)
	stop()

	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(int(exit.code))
		}
		fmt.Fprintf(os.Stderr, "webshell: %v\n", err)
		os.Exit(1)
	}
}
