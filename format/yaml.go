package format

import (
	"bytes"
	"io"

	"github.com/goliatone/go-cfgfilter/node"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"gopkg.in/yaml.v3"
)

type yamlAdapter struct {
	opts options
}

func (a yamlAdapter) Format() Format {
	return FormatYAML
}

func (a yamlAdapter) Configured(opts ...Option) Adapter {
	return yamlAdapter{opts: a.opts.with(opts...)}
}

func (a yamlAdapter) Read(r io.Reader) (*node.Node, error) {
	b, err := readInput(FormatYAML, r)
	if err != nil {
		return nil, err
	}
	m, err := kyaml.Parser().Unmarshal(b)
	if err != nil {
		return nil, parseError(FormatYAML, err)
	}
	return toNode(FormatYAML, m, a.opts)
}

func (a yamlAdapter) Write(w io.Writer, n *node.Node) error {
	return render(FormatYAML, w, n, func(buf *bytes.Buffer, raw map[string]any) error {
		enc := yaml.NewEncoder(buf)
		indent := a.opts.indent
		if indent < 1 {
			indent = 2
		}
		enc.SetIndent(indent)
		if err := enc.Encode(raw); err != nil {
			return err
		}
		return enc.Close()
	})
}
