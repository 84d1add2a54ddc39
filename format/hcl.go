package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

type hclAdapter struct {
	opts options
}

func (a hclAdapter) Format() Format {
	return FormatHCL
}

func (a hclAdapter) Configured(opts ...Option) Adapter {
	return hclAdapter{opts: a.opts.with(opts...)}
}

// Read accepts attribute-only bodies. Blocks have no place in a plain
// configuration tree and are rejected. Expressions are evaluated without
// variables or functions.
func (a hclAdapter) Read(r io.Reader) (*node.Node, error) {
	b, err := readInput(FormatHCL, r)
	if err != nil {
		return nil, err
	}

	file, diags := hclsyntax.ParseConfig(b, "input.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, parseError(FormatHCL, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, parseError(FormatHCL, diags)
	}

	m := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, parseError(FormatHCL, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, parseError(FormatHCL, fmt.Errorf("attribute %q: %w", name, err))
		}
		m[name] = native
	}
	return toNode(FormatHCL, m, a.opts)
}

// ctyToNative converts an evaluated value into plain Go values. Whole
// numbers become int so they match what the YAML and HOCON readers produce.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var out []any
		it := v.ElementIterator()
		for it.Next() {
			_, item := it.Element()
			native, err := ctyToNative(item)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := map[string]any{}
		it := v.ElementIterator()
		for it.Next() {
			key, item := it.Element()
			native, err := ctyToNative(item)
			if err != nil {
				return nil, fmt.Errorf("in %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

func (a hclAdapter) Write(w io.Writer, n *node.Node) error {
	return render(FormatHCL, w, n, func(buf *bytes.Buffer, raw map[string]any) error {
		f := hclwrite.NewEmptyFile()
		body := f.Body()
		for _, key := range sortedKeys(raw) {
			if !hclsyntax.ValidIdentifier(key) {
				return &unsupportedValueError{path: key, reason: fmt.Sprintf("%q is not a valid HCL identifier", key)}
			}
			val, err := nativeToCty(raw[key])
			if err != nil {
				return &unsupportedValueError{path: key, reason: err.Error()}
			}
			body.SetAttributeValue(key, val)
		}
		buf.Write(hclwrite.Format(f.Bytes()))
		return nil
	})
}

// nativeToCty goes through JSON so that nested maps and mixed lists get
// object and tuple types without a schema.
func nativeToCty(v any) (cty.Value, error) {
	if v == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(b)
	if err != nil {
		return cty.NilVal, err
	}
	val, err := ctyjson.Unmarshal(b, ty)
	if err != nil {
		return cty.NilVal, err
	}
	return val, nil
}
