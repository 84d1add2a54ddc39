package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/tidwall/pretty"
)

type jsonAdapter struct {
	opts options
}

func (a jsonAdapter) Format() Format {
	return FormatJSON
}

func (a jsonAdapter) Configured(opts ...Option) Adapter {
	return jsonAdapter{opts: a.opts.with(opts...)}
}

func (a jsonAdapter) Read(r io.Reader) (*node.Node, error) {
	b, err := readInput(FormatJSON, r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, parseError(FormatJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, parseError(FormatJSON, errors.New("unexpected data after the document"))
	}
	return toNode(FormatJSON, jsonNumbers(m).(map[string]any), a.opts)
}

// jsonNumbers replaces json.Number with int, int64 or uint64 when the
// literal is a whole number that fits, and float64 otherwise.
func jsonNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = jsonNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = jsonNumbers(item)
		}
		return val
	case json.Number:
		return numberValue(val)
	default:
		return v
	}
}

func numberValue(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if int64(int(i)) == i {
			return int(i)
		}
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	f, _ := n.Float64()
	return f
}

func (a jsonAdapter) Write(w io.Writer, n *node.Node) error {
	return render(FormatJSON, w, n, func(buf *bytes.Buffer, raw map[string]any) error {
		var compact bytes.Buffer
		enc := json.NewEncoder(&compact)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(raw); err != nil {
			return err
		}
		if a.opts.indent == 0 {
			buf.Write(pretty.Ugly(compact.Bytes()))
			buf.WriteByte('\n')
			return nil
		}
		buf.Write(pretty.PrettyOptions(compact.Bytes(), &pretty.Options{
			Width:    80,
			Indent:   strings.Repeat(" ", a.opts.indent),
			SortKeys: true,
		}))
		return nil
	})
}
