package filter

import (
	"fmt"
	"io"

	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/goliatone/go-errors"
)

// State is the setup state of a filter. It leaves StateUninitialized at
// most once and never changes afterwards.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type settings struct {
	name           string
	logger         logger.Logger
	requireMutator bool
}

// Option configures a filter at construction time.
type Option func(*settings)

// WithLogger sets the logger used for setup diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithName labels the filter, usually with the path of the filtered file.
// The name is carried in StageError metadata and messages.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// RequireMutator makes the mutator a required piece of configuration, so
// setup waits for SetMutator as well as both adapters.
func RequireMutator() Option {
	return func(s *settings) {
		s.requireMutator = true
	}
}

func newSettings(opts []Option) settings {
	s := settings{logger: logger.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// lazy is the state machine and replay buffer shared by both filters.
// Once setup resolves, out holds the text handed downstream and every
// stream operation works over it.
type lazy struct {
	settings
	upstream io.ReadCloser
	state    State
	err      error
	out      []byte
	pos      int
	mark     int
	closed   bool
}

func newLazy(in io.ReadCloser, opts []Option) lazy {
	return lazy{
		settings: newSettings(opts),
		upstream: in,
		mark:     -1,
	}
}

// State reports the current setup state.
func (l *lazy) State() State {
	return l.state
}

// Err returns the cached setup error, nil unless the state is StateFailed.
func (l *lazy) Err() error {
	return l.err
}

func (l *lazy) meta(extra map[string]any) map[string]any {
	m := map[string]any{}
	if l.name != "" {
		m["name"] = l.name
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// resolve drains upstream and hands the text to produce. It runs once; the
// state is terminal after it returns.
func (l *lazy) resolve(produce func([]byte) ([]byte, error), meta map[string]any) {
	if l.state != StateUninitialized {
		return
	}

	in, err := l.drain()
	if err != nil {
		l.fail(stageError(StageUpstream, ErrUpstreamIO, err, l.meta(meta)))
		return
	}

	out, err := produce(in)
	if err != nil {
		l.fail(err)
		return
	}

	l.out = out
	l.state = StateReady
	l.logger.Debug("filter %s ready, %d bytes in, %d bytes out", l.label(), len(in), len(out))
}

func (l *lazy) drain() ([]byte, error) {
	if l.upstream == nil {
		return nil, fmt.Errorf("no upstream stream")
	}
	if l.closed {
		return nil, ErrClosed
	}
	return io.ReadAll(l.upstream)
}

func (l *lazy) fail(err error) {
	l.err = err
	l.state = StateFailed
	l.logger.Debug("filter %s failed: %v", l.label(), err)
}

func (l *lazy) label() string {
	if l.name == "" {
		return "<stream>"
	}
	return l.name
}

// check gates every stream operation.
func (l *lazy) check(missing func() []string) error {
	if l.closed {
		return ErrClosed
	}
	switch l.state {
	case StateReady:
		return nil
	case StateFailed:
		return l.err
	}
	return stageError(StageConfigure, ErrConfigurationMissing,
		fmt.Errorf("not supplied: %v", missing()), l.meta(nil))
}

func (l *lazy) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.pos >= len(l.out) {
		return 0, io.EOF
	}
	n := copy(p, l.out[l.pos:])
	l.pos += n
	return n, nil
}

func (l *lazy) skip(n int64) (int64, error) {
	if n < 0 {
		return 0, errors.New("skip count must not be negative", errors.CategoryBadInput).
			WithTextCode("NEGATIVE_SKIP").
			WithMetadata(map[string]any{"count": n})
	}
	remaining := int64(len(l.out) - l.pos)
	if n > remaining {
		n = remaining
	}
	l.pos += int(n)
	return n, nil
}

// setMark records the current position. The whole output is held in
// memory, so the read-ahead limit only has to be non negative.
func (l *lazy) setMark(readAheadLimit int) error {
	if readAheadLimit < 0 {
		return errors.New("read ahead limit must not be negative", errors.CategoryBadInput).
			WithTextCode("NEGATIVE_READ_AHEAD").
			WithMetadata(map[string]any{"limit": readAheadLimit})
	}
	l.mark = l.pos
	return nil
}

// reset returns to the mark, or to the start when no mark was set.
func (l *lazy) reset() {
	if l.mark < 0 {
		l.pos = 0
		return
	}
	l.pos = l.mark
}

func (l *lazy) writeTo(w io.Writer) (int64, error) {
	if l.pos >= len(l.out) {
		return 0, nil
	}
	n, err := w.Write(l.out[l.pos:])
	l.pos += n
	return int64(n), err
}

// close releases upstream exactly once. The cached setup error is never
// reported here; closing a failed filter must still free its handle.
func (l *lazy) close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.out = nil
	if l.upstream == nil {
		return nil
	}
	if err := l.upstream.Close(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to close upstream stream").
			WithTextCode("UPSTREAM_CLOSE_FAILED").
			WithMetadata(l.meta(nil))
	}
	return nil
}
