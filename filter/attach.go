package filter

import (
	"fmt"
	"io"

	"github.com/goliatone/go-cfgfilter/format"
	"github.com/goliatone/go-cfgfilter/node"
	"github.com/goliatone/go-errors"
)

// Parameter names understood by Configure.
const (
	ParamFormat  = "format"
	ParamSource  = "source"
	ParamDest    = "dest"
	ParamMutator = "transformer"
)

// Params is the named parameter bundle registered with a host alongside a
// filter factory.
type Params map[string]any

// Configurable is a filter a host can build and configure by name.
type Configurable interface {
	io.ReadCloser
	Configure(name string, value any) error
}

// Factory builds one filter per filtered stream. Hosts pass per-stream
// options such as WithName and WithLogger.
type Factory func(in io.ReadCloser, opts ...Option) Configurable

// ContentFilterable is the host hook filters attach to: it wraps the
// content of every matched file with a filter built by factory and
// configured with params.
type ContentFilterable interface {
	Filter(params Params, factory Factory)
}

// ValidateFactory builds ValidateReaders.
func ValidateFactory(in io.ReadCloser, opts ...Option) Configurable {
	return NewValidateReader(in, opts...)
}

// TransformFactory builds TransformReaders.
func TransformFactory(in io.ReadCloser, opts ...Option) Configurable {
	return NewTransformReader(in, opts...)
}

// mutatingFactory builds TransformReaders that wait for the mutator.
func mutatingFactory(in io.ReadCloser, opts ...Option) Configurable {
	return NewTransformReader(in, append(opts, RequireMutator())...)
}

// Validate checks every matched file parses under a and passes its text
// through unchanged.
func Validate(cf ContentFilterable, a format.Adapter) {
	cf.Filter(Params{ParamFormat: a}, ValidateFactory)
}

// ConvertFormat re-serialises every matched file from source to dest,
// running mutators in order in between. Renaming the file is left to the
// caller.
func ConvertFormat(cf ContentFilterable, source, dest format.Adapter, mutators ...Mutator) {
	params := Params{ParamSource: source, ParamDest: dest}
	if len(mutators) == 0 {
		cf.Filter(params, TransformFactory)
		return
	}
	params[ParamMutator] = Chain(mutators...)
	cf.Filter(params, mutatingFactory)
}

// Transform edits every matched file with mutator and writes it back in
// the same format.
func Transform(cf ContentFilterable, a format.Adapter, mutator Mutator) {
	ConvertFormat(cf, a, a, mutator)
}

// Apply configures r with every entry of params. Map iteration order is
// unspecified, filters accept parameters in any order. The first error is
// returned after all entries were applied.
func Apply(r Configurable, params Params) error {
	var first error
	for name, value := range params {
		if err := r.Configure(name, value); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func adapterParam(name string, value any) (format.Adapter, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case format.Adapter:
		return v, nil
	case format.Format:
		return format.Lookup(string(v))
	case string:
		return format.Lookup(v)
	default:
		return nil, errors.New("parameter is not a format", errors.CategoryBadInput).
			WithTextCode("INVALID_PARAMETER_TYPE").
			WithMetadata(map[string]any{
				"parameter": name,
				"type":      fmt.Sprintf("%T", value),
			})
	}
}

func mutatorParam(value any) (Mutator, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case Mutator:
		return v, nil
	case func(*node.Node) error:
		return v, nil
	case func(*node.Node):
		return func(n *node.Node) error {
			v(n)
			return nil
		}, nil
	default:
		return nil, errors.New("parameter is not a mutator", errors.CategoryBadInput).
			WithTextCode("INVALID_PARAMETER_TYPE").
			WithMetadata(map[string]any{
				"parameter": ParamMutator,
				"type":      fmt.Sprintf("%T", value),
			})
	}
}

func unknownParam(name string, known ...string) error {
	return errors.New("unknown filter parameter", errors.CategoryBadInput).
		WithTextCode("UNKNOWN_PARAMETER").
		WithMetadata(map[string]any{
			"parameter": name,
			"known":     known,
		})
}
