package filter

import (
	"bytes"
	"io"

	"github.com/goliatone/go-cfgfilter/format"
)

// TransformReader parses the wrapped stream with a source adapter, runs an
// optional mutator over the tree and serves the tree serialised by a
// destination adapter. The original text is never exposed.
//
// The setters may be called in any order. Setup runs exactly once, when the
// last required piece arrives; every stream operation before that fails
// with ErrConfigurationMissing and every operation after a failed setup
// returns the same cached error.
type TransformReader struct {
	lazy
	source     format.Adapter
	dest       format.Adapter
	mutator    Mutator
	mutatorSet bool
}

func NewTransformReader(in io.ReadCloser, opts ...Option) *TransformReader {
	return &TransformReader{lazy: newLazy(in, opts)}
}

func (t *TransformReader) SetSource(a format.Adapter) {
	if t.ignored("source") {
		return
	}
	t.source = a
	t.advance()
}

func (t *TransformReader) SetDestination(a format.Adapter) {
	if t.ignored("destination") {
		return
	}
	t.dest = a
	t.advance()
}

// SetMutator supplies the tree edit. A nil mutator counts as supplied and
// means no edit.
func (t *TransformReader) SetMutator(m Mutator) {
	if t.ignored("mutator") {
		return
	}
	t.mutator = m
	t.mutatorSet = true
	t.advance()
}

// Configure applies a named parameter: ParamSource, ParamDest or
// ParamMutator.
func (t *TransformReader) Configure(name string, value any) error {
	switch name {
	case ParamSource, ParamDest:
		a, err := adapterParam(name, value)
		if err != nil {
			return err
		}
		if name == ParamSource {
			t.SetSource(a)
		} else {
			t.SetDestination(a)
		}
		return nil
	case ParamMutator:
		m, err := mutatorParam(value)
		if err != nil {
			return err
		}
		t.SetMutator(m)
		return nil
	default:
		return unknownParam(name, ParamSource, ParamDest, ParamMutator)
	}
}

func (t *TransformReader) ignored(what string) bool {
	if t.state == StateUninitialized {
		return false
	}
	t.logger.Debug("filter %s: %s ignored, already %s", t.label(), what, t.state)
	return true
}

func (t *TransformReader) missing() []string {
	var out []string
	if t.source == nil {
		out = append(out, ParamSource)
	}
	if t.dest == nil {
		out = append(out, ParamDest)
	}
	if t.requireMutator && !t.mutatorSet {
		out = append(out, ParamMutator)
	}
	return out
}

// advance is the single transition out of StateUninitialized.
func (t *TransformReader) advance() {
	if t.state != StateUninitialized || len(t.missing()) > 0 {
		return
	}
	src, dst, mut := t.source, t.dest, t.mutator
	meta := map[string]any{
		"source": src.Format().String(),
		"dest":   dst.Format().String(),
	}

	t.resolve(func(in []byte) ([]byte, error) {
		n, err := src.Read(bytes.NewReader(in))
		if err != nil {
			return nil, stageError(StageParse, ErrParse, err, t.meta(meta))
		}
		if mut != nil {
			if err := safeMutate(mut, n); err != nil {
				return nil, stageError(StageMutate, ErrMutator, err, t.meta(meta))
			}
		}
		var buf bytes.Buffer
		if err := dst.Write(&buf, n); err != nil {
			return nil, stageError(StageSerialize, ErrSerialization, err, t.meta(meta))
		}
		return buf.Bytes(), nil
	}, meta)
}

func (t *TransformReader) Read(p []byte) (int, error) {
	if err := t.check(t.missing); err != nil {
		return 0, err
	}
	return t.read(p)
}

// Skip discards up to n bytes and reports how many were skipped.
func (t *TransformReader) Skip(n int64) (int64, error) {
	if err := t.check(t.missing); err != nil {
		return 0, err
	}
	return t.skip(n)
}

func (t *TransformReader) Mark(readAheadLimit int) error {
	if err := t.check(t.missing); err != nil {
		return err
	}
	return t.setMark(readAheadLimit)
}

func (t *TransformReader) Reset() error {
	if err := t.check(t.missing); err != nil {
		return err
	}
	t.reset()
	return nil
}

func (t *TransformReader) Ready() (bool, error) {
	if err := t.check(t.missing); err != nil {
		return false, err
	}
	return true, nil
}

func (t *TransformReader) WriteTo(w io.Writer) (int64, error) {
	if err := t.check(t.missing); err != nil {
		return 0, err
	}
	return t.writeTo(w)
}

func (t *TransformReader) Close() error {
	return t.close()
}
