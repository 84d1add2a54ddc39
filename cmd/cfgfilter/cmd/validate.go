package cmd

import (
	"fmt"
	"io"

	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	var formatName string

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Check that configuration files parse",
		Long: `Validate parses every file and reports the ones that fail. Formats are
inferred from file extensions unless --format is given. Without files, stdin
is read and --format is required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{stdioName}
			}

			failed := 0
			for _, name := range args {
				if err := validateOne(cmd, a, formatName, name); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", name)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Format of every input")

	return cmd
}

func validateOne(cmd *cobra.Command, a *app, formatName, name string) error {
	adapter, err := adapterFor(formatName, name, "format")
	if err != nil {
		return err
	}

	r, label, err := a.open(name)
	if err != nil {
		return err
	}

	v := filter.NewValidateReader(r, filter.WithName(label), filter.WithLogger(a.logger(cmd)))
	defer v.Close()

	v.SetFormat(adapter)
	_, err = io.Copy(io.Discard, v)
	return err
}
