// Package format provides the closed set of configuration syntaxes the
// filters understand.
//
// Each Format has an Adapter that parses text into a node.Node and
// serialises a node.Node back to text. Adapters are plain values carrying
// their serialisation options; Configured returns a modified copy, so one
// adapter can be shared by any number of concurrently running filters.
//
// Supported formats:
//   - json: koanf JSON parser, output indented with tidwall/pretty.
//   - yaml: koanf YAML parser, output through a yaml.v3 encoder.
//   - toml: koanf TOML parser in both directions.
//   - hocon: gurkankaymak/hocon reader and a built in writer.
//   - xml: clbanning/mxj in both directions, root element kept as the single top level key.
//   - hcl: HCL native syntax, attributes only, through hclsyntax/hclwrite and go-cty.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goliatone/go-cfgfilter/node"
)

var (
	// ErrParse is matched by every error returned from Adapter.Read when the
	// input is not valid for the format.
	ErrParse = errors.New("format: parse failed")
	// ErrSerialization is matched by every error returned from Adapter.Write.
	ErrSerialization = errors.New("format: serialization failed")
	// ErrIO is matched when the reader handed to Read fails.
	ErrIO = errors.New("format: read failed")
)

// Adapter is a parse/serialise pair for a single syntax.
type Adapter interface {
	Format() Format
	// Read parses the whole reader. On failure nothing is returned.
	Read(r io.Reader) (*node.Node, error)
	// Write serialises n. On failure nothing is written to w.
	Write(w io.Writer, n *node.Node) error
	// Configured returns a copy of the adapter with opts applied.
	Configured(opts ...Option) Adapter
}

// Error carries the failing format and operation.
type Error struct {
	Format Format
	Op     string
	Base   error
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %v", e.Format, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if errors.Is(e.Base, target) {
		return true
	}
	return errors.Is(e.Err, target)
}

func parseError(f Format, err error) error {
	return &Error{Format: f, Op: "parse", Base: ErrParse, Err: err}
}

func serializationError(f Format, err error) error {
	return &Error{Format: f, Op: "write", Base: ErrSerialization, Err: err}
}

type options struct {
	indent    int
	rootTag   string
	separator string
	delimiter string
}

func defaultOptions() options {
	return options{
		indent:    2,
		rootTag:   "config",
		separator: "=",
		delimiter: node.DefaultDelimiter,
	}
}

type Option func(*options)

// WithIndent sets the indentation width used by the writers.
func WithIndent(spaces int) Option {
	return func(o *options) {
		if spaces >= 0 {
			o.indent = spaces
		}
	}
}

// WithRootTag sets the element XML output is wrapped in when the tree does
// not have a single root element.
func WithRootTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.rootTag = tag
		}
	}
}

// WithSeparator sets the HOCON key/value separator, "=" or ":".
func WithSeparator(sep string) Option {
	return func(o *options) {
		if sep == "=" || sep == ":" {
			o.separator = sep
		}
	}
}

// WithPathDelimiter sets the path delimiter of nodes produced by Read.
func WithPathDelimiter(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delimiter = delim
		}
	}
}

func (o options) with(opts ...Option) options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func readInput(f Format, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, &Error{Format: f, Op: "read", Base: ErrIO, Err: errors.New("nil reader")}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Format: f, Op: "read", Base: ErrIO, Err: err}
	}
	return b, nil
}

func toNode(f Format, m map[string]any, o options) (*node.Node, error) {
	n, err := node.FromMap(m, node.WithDelimiter(o.delimiter))
	if err != nil {
		return nil, parseError(f, err)
	}
	return n, nil
}

// render runs fn against a scratch buffer and copies the result to w only
// when fn succeeds. Panics raised by encoders are reported as errors.
func render(f Format, w io.Writer, n *node.Node, fn func(*bytes.Buffer, map[string]any) error) (err error) {
	if w == nil {
		return serializationError(f, errors.New("nil writer"))
	}
	if n == nil {
		return serializationError(f, errors.New("nil node"))
	}

	var buf bytes.Buffer
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = serializationError(f, fmt.Errorf("encoder panic: %v", r))
			}
		}()
		if ferr := fn(&buf, n.Raw()); ferr != nil {
			err = serializationError(f, ferr)
		}
	}()
	if err != nil {
		return err
	}

	if _, werr := w.Write(buf.Bytes()); werr != nil {
		return serializationError(f, werr)
	}
	return nil
}
