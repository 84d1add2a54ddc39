package format

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/goliatone/go-cfgfilter/node"
)

// xmlName accepts element names without namespaces plus mxj's attribute
// ("-name") and text ("#text") keys.
var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._:-]*$`)

// xmlNumber is the JSON number grammar. Text such as 007, 0x10 or Inf stays
// a string.
var xmlNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)

type xmlAdapter struct {
	opts options
}

func (a xmlAdapter) Format() Format {
	return FormatXML
}

func (a xmlAdapter) Configured(opts ...Option) Adapter {
	return xmlAdapter{opts: a.opts.with(opts...)}
}

// Read keeps the document element as the single top level key. Text that
// is exactly true, false or a number is cast; anything else, T or f
// included, stays a string.
func (a xmlAdapter) Read(r io.Reader) (*node.Node, error) {
	b, err := readInput(FormatXML, r)
	if err != nil {
		return nil, err
	}
	m, err := mxj.NewMapXml(b)
	if err != nil {
		return nil, parseError(FormatXML, err)
	}
	tree, _ := castXML(map[string]any(m)).(map[string]any)
	return toNode(FormatXML, tree, a.opts)
}

func castXML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = castXML(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = castXML(item)
		}
		return val
	case string:
		return xmlScalar(val)
	default:
		return v
	}
}

func xmlScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if !xmlNumber.MatchString(s) {
		return s
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if int64(int(i)) == i {
			return int(i)
		}
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	// whole values such as 1e5 are written back without exponent
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int(f)
	}
	return f
}

// Write emits the tree's single key as the document element. Trees with
// several top level keys, none, or a list at the root are wrapped in the
// configured root tag.
func (a xmlAdapter) Write(w io.Writer, n *node.Node) error {
	return render(FormatXML, w, n, func(buf *bytes.Buffer, raw map[string]any) error {
		if err := checkXMLNames("", raw); err != nil {
			return err
		}

		doc := mxj.Map(raw)
		if !singleRoot(raw) {
			doc = mxj.Map{a.opts.rootTag: raw}
		}

		out, err := doc.XmlIndent("", strings.Repeat(" ", a.opts.indent))
		if err != nil {
			return err
		}
		buf.Write(out)
		buf.WriteByte('\n')
		return nil
	})
}

func singleRoot(raw map[string]any) bool {
	if len(raw) != 1 {
		return false
	}
	for _, v := range raw {
		if _, isList := v.([]any); isList {
			return false
		}
	}
	return true
}

func checkXMLNames(path string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			if k == "#text" {
				continue
			}
			if name := strings.TrimPrefix(k, "-"); !xmlName.MatchString(name) {
				return &unsupportedValueError{
					path:   joinPath(path, k),
					reason: fmt.Sprintf("%q is not a valid XML name", k),
				}
			}
			if err := checkXMLNames(joinPath(path, k), val[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range val {
			if err := checkXMLNames(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	}
	return nil
}
