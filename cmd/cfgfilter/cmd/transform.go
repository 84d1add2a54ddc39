package cmd

import (
	"bytes"
	"errors"
	"io"

	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/spf13/cobra"
)

func newTransformCmd(a *app) *cobra.Command {
	var (
		formatName string
		out        string
		ef         editFlags
	)

	cmd := &cobra.Command{
		Use:   "transform [flags] file",
		Short: "Edit a configuration file in place",
		Long: `Transform applies edits to a file and writes it back in the same format,
or to --out when given ("-" prints it).

  cfgfilter transform --set server.port=9090 --delete debug app.yaml
  cfgfilter transform --resolve --out - app.conf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if out == "" {
				if name == stdioName {
					return errors.New("transforming stdin needs --out")
				}
				out = name
			}

			adapter, err := adapterFor(formatName, name, "format")
			if err != nil {
				return err
			}
			mutator, err := ef.mutator()
			if err != nil {
				return err
			}
			if mutator == nil {
				return errors.New("nothing to do, use --set, --delete or --resolve")
			}

			r, label, err := a.open(name)
			if err != nil {
				return err
			}

			// the mutator must be in place before both formats are
			f := filter.NewTransformReader(r,
				filter.WithName(label),
				filter.WithLogger(a.logger(cmd)),
				filter.RequireMutator(),
			)
			defer f.Close()

			if err := filter.Apply(f, filter.Params{
				filter.ParamSource:  adapter,
				filter.ParamDest:    adapter,
				filter.ParamMutator: mutator,
			}); err != nil {
				return err
			}

			var buf bytes.Buffer
			if _, err := io.Copy(&buf, f); err != nil {
				return err
			}
			return a.write(cmd, out, buf.Bytes())
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Format of the file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write here instead of in place")
	ef.bind(cmd)

	return cmd
}
