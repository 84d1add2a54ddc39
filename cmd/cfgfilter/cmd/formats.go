package cmd

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-cfgfilter/format"
	"github.com/spf13/cobra"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported formats and their file extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, a := range format.All() {
				f := a.Format()
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", f, strings.Join(f.Extensions(), " ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
