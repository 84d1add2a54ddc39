package format

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goliatone/go-cfgfilter/node"
	ktoml "github.com/knadh/koanf/parsers/toml"
)

type tomlAdapter struct {
	opts options
}

func (a tomlAdapter) Format() Format {
	return FormatTOML
}

func (a tomlAdapter) Configured(opts ...Option) Adapter {
	return tomlAdapter{opts: a.opts.with(opts...)}
}

func (a tomlAdapter) Read(r io.Reader) (*node.Node, error) {
	b, err := readInput(FormatTOML, r)
	if err != nil {
		return nil, err
	}
	m, err := ktoml.Parser().Unmarshal(b)
	if err != nil {
		return nil, parseError(FormatTOML, err)
	}
	return toNode(FormatTOML, m, a.opts)
}

// Write has no indentation control, the TOML encoder owns the layout.
func (a tomlAdapter) Write(w io.Writer, n *node.Node) error {
	return render(FormatTOML, w, n, func(buf *bytes.Buffer, raw map[string]any) error {
		if path, ok := findNil("", raw); ok {
			return &unsupportedValueError{path: path, reason: "null values have no TOML representation"}
		}
		if path, ok := findMixedArray("", raw); ok {
			return &unsupportedValueError{path: path, reason: "the TOML encoder cannot write arrays mixing value types"}
		}
		out, err := ktoml.Parser().Marshal(raw)
		if err != nil {
			return err
		}
		buf.Write(out)
		return nil
	})
}

// findMixedArray returns the first array whose items are not all of one
// TOML kind. Integer widths count as one kind.
func findMixedArray(path string, v any) (string, bool) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			if p, ok := findMixedArray(joinPath(path, k), val[k]); ok {
				return p, true
			}
		}
	case []any:
		for i, item := range val {
			if tomlKind(item) != tomlKind(val[0]) {
				return path, true
			}
			if p, ok := findMixedArray(fmt.Sprintf("%s[%d]", path, i), item); ok {
				return p, true
			}
		}
	}
	return "", false
}

func tomlKind(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "float"
	case map[string]any:
		return "table"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
