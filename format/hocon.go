package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/gurkankaymak/hocon"
)

type hoconAdapter struct {
	opts options
}

func (a hoconAdapter) Format() Format {
	return FormatHOCON
}

func (a hoconAdapter) Configured(opts ...Option) Adapter {
	return hoconAdapter{opts: a.opts.with(opts...)}
}

func (a hoconAdapter) Read(r io.Reader) (*node.Node, error) {
	b, err := readInput(FormatHOCON, r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return toNode(FormatHOCON, nil, a.opts)
	}

	conf, err := hocon.ParseString(string(b))
	if err != nil {
		return nil, parseError(FormatHOCON, err)
	}

	root, ok := conf.GetRoot().(hocon.Object)
	if !ok {
		return nil, parseError(FormatHOCON, errors.New("document root must be an object"))
	}

	d := hoconDecoder{escapes: !bytes.Contains(b, []byte(`"""`))}
	m, _ := d.value(root).(map[string]any)
	return toNode(FormatHOCON, m, a.opts)
}

// hoconDecoder converts parsed values to plain Go values. The parser hands
// quoted strings back with their escape sequences still in place, so with
// escapes set those are decoded. Documents holding triple quoted strings,
// which are raw, are left alone.
type hoconDecoder struct {
	escapes bool
}

func (d hoconDecoder) value(v hocon.Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case hocon.Object:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[d.text(k)] = d.value(item)
		}
		return m
	case hocon.Array:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, d.value(item))
		}
		return out
	case hocon.String:
		return d.text(string(val))
	default:
		return scalarFromText(val.String())
	}
}

// text decodes the escapes of a quoted string. The parser trims every
// quote at both ends of the token, so a string ending in an escaped quote
// arrives with an odd run of trailing backslashes and gets it back.
func (d hoconDecoder) text(s string) string {
	if !d.escapes || !strings.Contains(s, `\`) {
		return s
	}
	quoted := s
	if trailing := len(s) - len(strings.TrimRight(s, `\`)); trailing%2 == 1 {
		quoted += `"`
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+quoted+`"`), &out); err != nil {
		return s
	}
	return out
}

func (a hoconAdapter) Write(w io.Writer, n *node.Node) error {
	return render(FormatHOCON, w, n, func(buf *bytes.Buffer, raw map[string]any) error {
		hw := &hoconWriter{
			buf:       buf,
			indent:    strings.Repeat(" ", max(a.opts.indent, 1)),
			separator: a.opts.separator,
		}
		return hw.fields("", raw, 0)
	})
}

var bareHoconKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

type hoconWriter struct {
	buf       *bytes.Buffer
	indent    string
	separator string
}

func (w *hoconWriter) pad(depth int) {
	for i := 0; i < depth; i++ {
		w.buf.WriteString(w.indent)
	}
}

func (w *hoconWriter) fields(path string, m map[string]any, depth int) error {
	for _, k := range sortedKeys(m) {
		w.pad(depth)
		w.buf.WriteString(hoconKey(k))
		w.buf.WriteString(" " + w.separator + " ")
		if err := w.value(joinPath(path, k), m[k], depth); err != nil {
			return err
		}
		w.buf.WriteByte('\n')
	}
	return nil
}

func (w *hoconWriter) value(path string, v any, depth int) error {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			w.buf.WriteString("{}")
			return nil
		}
		w.buf.WriteString("{\n")
		if err := w.fields(path, val, depth+1); err != nil {
			return err
		}
		w.pad(depth)
		w.buf.WriteByte('}')
	case []any:
		if len(val) == 0 {
			w.buf.WriteString("[]")
			return nil
		}
		w.buf.WriteString("[\n")
		for i, item := range val {
			w.pad(depth + 1)
			if err := w.value(fmt.Sprintf("%s[%d]", path, i), item, depth+1); err != nil {
				return err
			}
			if i < len(val)-1 {
				w.buf.WriteByte(',')
			}
			w.buf.WriteByte('\n')
		}
		w.pad(depth)
		w.buf.WriteByte(']')
	default:
		s, err := hoconScalar(path, val)
		if err != nil {
			return err
		}
		w.buf.WriteString(s)
	}
	return nil
}

// reserved words are valid keys only when quoted.
var hoconReserved = map[string]bool{"include": true, "true": true, "false": true, "null": true}

func hoconKey(k string) string {
	if bareHoconKey.MatchString(k) && !hoconReserved[k] {
		return k
	}
	return quote(k)
}

func hoconScalar(path string, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", &unsupportedValueError{path: path, reason: "non finite number"}
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		return quote(val.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return quote(val.String()), nil
	default:
		return "", &unsupportedValueError{path: path, reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

// quote renders s as a JSON string, which HOCON accepts as a quoted string.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
