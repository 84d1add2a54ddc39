package cmd

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/goliatone/go-cfgfilter/format"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

type convertOptions struct {
	from   string
	to     string
	indent int
	query  string
	edits  editFlags
}

func newConvertCmd(a *app) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [input] [output]",
		Short: "Convert a configuration file to another format",
		Long: `Convert reads a configuration document, applies edits and writes it in
another format. Input and output default to stdin and stdout. Formats are
inferred from file extensions unless --from and --to are given.

  cfgfilter convert app.yaml app.json
  cat app.toml | cfgfilter convert --from toml --to yaml --set server.port=8080
  cfgfilter convert app.yaml --to json --query server.port`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in, out string
			if len(args) > 0 {
				in = args[0]
			}
			if len(args) > 1 {
				out = args[1]
			}
			return runConvert(cmd, a, opts, in, out)
		},
	}

	cmd.Flags().StringVarP(&opts.from, "from", "f", "", "Input format")
	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "Output format")
	cmd.Flags().IntVar(&opts.indent, "indent", -1, "Indentation width, 0 for compact output where supported")
	cmd.Flags().StringVar(&opts.query, "query", "", "Print only the value at this gjson path (JSON output)")
	opts.edits.bind(cmd)

	return cmd
}

func runConvert(cmd *cobra.Command, a *app, opts *convertOptions, in, out string) error {
	source, err := adapterFor(opts.from, in, "from")
	if err != nil {
		return err
	}
	dest, err := adapterFor(opts.to, out, "to")
	if err != nil {
		return err
	}
	if opts.indent >= 0 {
		dest = dest.Configured(format.WithIndent(opts.indent))
	}
	if opts.query != "" && dest.Format() != format.FormatJSON {
		return fmt.Errorf("--query needs JSON output, got %s", dest.Format())
	}

	mutator, err := opts.edits.mutator()
	if err != nil {
		return err
	}

	r, name, err := a.open(in)
	if err != nil {
		return err
	}

	log := a.logger(cmd)
	t := filter.NewTransformReader(r, filter.WithName(name), filter.WithLogger(log))
	defer t.Close()

	if mutator != nil {
		t.SetMutator(mutator)
	}
	t.SetSource(source)
	t.SetDestination(dest)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, t); err != nil {
		return err
	}
	log.Debug("converted %s from %s to %s", name, source.Format(), dest.Format())

	data := buf.Bytes()
	if opts.query != "" {
		res := gjson.GetBytes(data, opts.query)
		if !res.Exists() {
			return fmt.Errorf("query %q matched nothing", opts.query)
		}
		data = []byte(res.String() + "\n")
	}
	return a.write(cmd, out, data)
}
