package filter

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-cfgfilter/format"
)

var (
	// ErrConfigurationMissing is returned by stream operations issued before
	// every required piece of configuration was supplied.
	ErrConfigurationMissing = errors.New("filter: configuration missing")
	// ErrParse reports input that is not valid for the source format.
	ErrParse = format.ErrParse
	// ErrSerialization reports a tree the destination format cannot express.
	ErrSerialization = format.ErrSerialization
	// ErrMutator reports a mutator that returned an error or panicked.
	ErrMutator = errors.New("filter: mutator failed")
	// ErrUpstreamIO reports a failure draining the wrapped stream.
	ErrUpstreamIO = errors.New("filter: upstream read failed")
	// ErrClosed is returned by stream operations after Close.
	ErrClosed = errors.New("filter: closed")
)

// Stage names used in StageError.
const (
	StageConfigure = "configure"
	StageUpstream  = "upstream"
	StageParse     = "parse"
	StageMutate    = "mutate"
	StageSerialize = "serialize"
)

// StageError describes a setup failure in a specific stage along with
// contextual metadata. The same value is returned by every operation on a
// failed filter.
type StageError struct {
	Stage string
	Base  error
	Err   error
	Meta  map[string]any
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if name, ok := e.Meta["name"].(string); ok && name != "" {
		return fmt.Sprintf("%s: %s: %v", name, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether the target matches either the stage sentinel or the
// wrapped error.
func (e *StageError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if errors.Is(e.Base, target) {
		return true
	}
	return errors.Is(e.Err, target)
}

func stageError(stage string, base, err error, meta map[string]any) error {
	if err == nil {
		return nil
	}
	return &StageError{
		Stage: stage,
		Base:  base,
		Err:   err,
		Meta:  meta,
	}
}
