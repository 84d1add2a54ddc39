package filter

import (
	"bytes"
	"io"

	"github.com/goliatone/go-cfgfilter/format"
	"github.com/goliatone/go-cfgfilter/node"
)

// ValidateReader checks that the wrapped stream parses under one format and
// then replays the original text unchanged. The whole stream is buffered
// during setup.
type ValidateReader struct {
	lazy
	adapter format.Adapter
	node    *node.Node
}

// NewValidateReader wraps in. Nothing is read until SetFormat supplies an
// adapter.
func NewValidateReader(in io.ReadCloser, opts ...Option) *ValidateReader {
	return &ValidateReader{lazy: newLazy(in, opts)}
}

// SetFormat supplies the adapter and runs setup. Calls after setup are
// ignored; a nil adapter leaves the reader unconfigured.
func (v *ValidateReader) SetFormat(a format.Adapter) {
	if v.state != StateUninitialized {
		v.logger.Debug("filter %s: format ignored, already %s", v.label(), v.state)
		return
	}
	v.adapter = a
	v.advance()
}

// Configure applies a named parameter. Only ParamFormat is understood.
func (v *ValidateReader) Configure(name string, value any) error {
	if name != ParamFormat {
		return unknownParam(name, ParamFormat)
	}
	a, err := adapterParam(name, value)
	if err != nil {
		return err
	}
	v.SetFormat(a)
	return nil
}

func (v *ValidateReader) advance() {
	if v.adapter == nil {
		return
	}
	a := v.adapter
	v.resolve(func(in []byte) ([]byte, error) {
		n, err := a.Read(bytes.NewReader(in))
		if err != nil {
			return nil, stageError(StageParse, ErrParse, err, v.meta(map[string]any{"format": a.Format().String()}))
		}
		v.node = n
		return in, nil
	}, map[string]any{"format": a.Format().String()})
}

// Node returns the tree parsed during validation, nil until the reader is
// ready.
func (v *ValidateReader) Node() *node.Node {
	return v.node
}

func (v *ValidateReader) missing() []string {
	return []string{ParamFormat}
}

func (v *ValidateReader) Read(p []byte) (int, error) {
	if err := v.check(v.missing); err != nil {
		return 0, err
	}
	return v.read(p)
}

// Skip discards up to n bytes and reports how many were skipped.
func (v *ValidateReader) Skip(n int64) (int64, error) {
	if err := v.check(v.missing); err != nil {
		return 0, err
	}
	return v.skip(n)
}

func (v *ValidateReader) Mark(readAheadLimit int) error {
	if err := v.check(v.missing); err != nil {
		return err
	}
	return v.setMark(readAheadLimit)
}

func (v *ValidateReader) Reset() error {
	if err := v.check(v.missing); err != nil {
		return err
	}
	v.reset()
	return nil
}

// Ready reports whether a Read would return without blocking, which is
// always the case once setup succeeded.
func (v *ValidateReader) Ready() (bool, error) {
	if err := v.check(v.missing); err != nil {
		return false, err
	}
	return true, nil
}

func (v *ValidateReader) WriteTo(w io.Writer) (int64, error) {
	if err := v.check(v.missing); err != nil {
		return 0, err
	}
	return v.writeTo(w)
}

func (v *ValidateReader) Close() error {
	v.node = nil
	return v.close()
}
