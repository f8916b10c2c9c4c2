package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"skiff/cmd/skiff/ui"
	"skiff/config"
	"skiff/internal/buildinfo"
	"skiff/internal/logging"
)

func main() {
	opts := &rootOptions{}

	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "skiff",
		Short:         "Declarative local container orchestration",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Configure(opts.noColor)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.applyDefaults(cfg)

			level := logging.LevelWarn
			if opts.logLevel != "" {
				level = opts.logLevel
			}
			if opts.debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "Topology file (default skiff.yaml)")
	root.PersistentFlags().StringVarP(&opts.project, "project", "p", "", "Project name (default from the document)")
	root.PersistentFlags().StringArrayVar(&opts.envFiles, "env-file", nil, "Env file layered under the process environment (repeatable)")

	root.AddCommand(upCmd(opts))
	root.AddCommand(downCmd(opts))
	root.AddCommand(psCmd(opts))
	root.AddCommand(configCmd(opts))
	root.AddCommand(graphCmd(opts))
	root.AddCommand(logsCmd(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
