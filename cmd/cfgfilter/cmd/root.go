// Package cmd provides the CLI commands for cfgfilter.
package cmd

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app carries what every command shares. Tests swap the file system and
// the environment.
type app struct {
	fs      afero.Fs
	environ func() []string
	stdin   io.Reader

	verbose bool
	quiet   bool
}

func newApp() *app {
	return &app{
		fs:      afero.NewOsFs(),
		environ: os.Environ,
		stdin:   os.Stdin,
	}
}

// logger writes to the command's stderr. --verbose enables debug output,
// --quiet keeps errors only.
func (a *app) logger(cmd *cobra.Command, level ...logger.Level) *logger.DefaultLogger {
	lvl := logger.LevelInfo
	if len(level) > 0 {
		lvl = level[0]
	}
	switch {
	case a.verbose:
		lvl = logger.LevelDebug
	case a.quiet:
		lvl = logger.LevelError
	}
	return logger.NewDefaultLogger("cfgfilter").
		WithOutput(log.New(cmd.ErrOrStderr(), "", 0)).
		WithLevel(lvl)
}

// NewRootCmd creates the root command for the cfgfilter CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfgfilter",
		Short: "Validate and convert configuration files between formats",
		Long: `cfgfilter converts configuration files between JSON, YAML, TOML,
HOCON, XML and HCL, validates them and applies edits on the way.

Single files are handled by convert, validate and transform. Whole trees
are copied by run, driven by a manifest (cfgfilter.yaml by default).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("cfgfilter version {{.Version}}\n")

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Only log errors")

	cmd.AddCommand(newConvertCmd(a))
	cmd.AddCommand(newValidateCmd(a))
	cmd.AddCommand(newTransformCmd(a))
	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newFormatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		return err
	}
	return nil
}
