package filter

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/goliatone/go-cfgfilter/format"
	"github.com/goliatone/go-cfgfilter/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream records reads and closes of the wrapped stream.
type upstream struct {
	r      io.Reader
	reads  int
	closes int
	err    error
}

func newUpstream(text string) *upstream {
	return &upstream{r: strings.NewReader(text)}
}

func (u *upstream) Read(p []byte) (int, error) {
	u.reads++
	if u.err != nil {
		return 0, u.err
	}
	return u.r.Read(p)
}

func (u *upstream) Close() error {
	u.closes++
	return nil
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func parse(t *testing.T, a format.Adapter, text string) *node.Node {
	t.Helper()
	n, err := a.Read(strings.NewReader(text))
	require.NoError(t, err)
	return n
}

func TestTransformReader_YAMLToJSON(t *testing.T) {
	r := NewTransformReader(newUpstream("key: value\nlist:\n  - 1\n  - 2\n"))
	r.SetSource(format.YAML)
	r.SetDestination(format.JSON)

	out := readAll(t, r)

	expected := parse(t, format.JSON, `{"key": "value", "list": [1, 2]}`)
	assert.True(t, expected.Equal(parse(t, format.JSON, out)), out)
}

func TestTransformReader_CrossFormatRoundTrip(t *testing.T) {
	original := `{"a": [1, 2, 3]}`

	toYAML := NewTransformReader(newUpstream(original))
	toYAML.SetSource(format.JSON)
	toYAML.SetDestination(format.YAML)
	yamlText := readAll(t, toYAML)

	toJSON := NewTransformReader(io.NopCloser(strings.NewReader(yamlText)))
	toJSON.SetSource(format.YAML)
	toJSON.SetDestination(format.JSON)
	jsonText := readAll(t, toJSON)

	assert.True(t, parse(t, format.JSON, original).Equal(parse(t, format.JSON, jsonText)), jsonText)
}

func TestTransformReader_IdentityReparsesEqual(t *testing.T) {
	docs := map[format.Adapter]string{
		format.JSON:  `{"name": "app", "ports": [80, 443], "tls": {"enabled": true}}`,
		format.YAML:  "name: app\nports:\n  - 80\n  - 443\ntls:\n  enabled: true\n",
		format.TOML:  "name = \"app\"\nports = [80, 443]\n\n[tls]\nenabled = true\n",
		format.HOCON: "name = app\nports = [80, 443]\ntls { enabled = true }\n",
		format.XML:   "<config><name>app</name><tls><enabled>true</enabled></tls></config>",
		format.HCL:   "name = \"app\"\nports = [80, 443]\ntls = { enabled = true }\n",
	}

	for a, text := range docs {
		t.Run(a.Format().String(), func(t *testing.T) {
			r := NewTransformReader(newUpstream(text))
			r.SetSource(a)
			r.SetDestination(a)
			r.SetMutator(Noop)

			out := readAll(t, r)
			assert.True(t, parse(t, a, text).Equal(parse(t, a, out)), out)
		})
	}
}

func TestTransformReader_SetterOrderIndependence(t *testing.T) {
	const input = "b: 2\na:\n  c: [x, y]\n"
	mut := Mutator(func(n *node.Node) error { return n.Set("a.d", "added") })

	orders := [][]func(*TransformReader){
		{
			func(r *TransformReader) { r.SetSource(format.YAML) },
			func(r *TransformReader) { r.SetDestination(format.JSON) },
			func(r *TransformReader) { r.SetMutator(mut) },
		},
		{
			func(r *TransformReader) { r.SetMutator(mut) },
			func(r *TransformReader) { r.SetDestination(format.JSON) },
			func(r *TransformReader) { r.SetSource(format.YAML) },
		},
		{
			func(r *TransformReader) { r.SetDestination(format.JSON) },
			func(r *TransformReader) { r.SetMutator(mut) },
			func(r *TransformReader) { r.SetSource(format.YAML) },
		},
	}

	var outputs []string
	for _, order := range orders {
		up := newUpstream(input)
		r := NewTransformReader(up, RequireMutator())
		for i, set := range order {
			set(r)
			if i < len(order)-1 {
				assert.Equal(t, StateUninitialized, r.State())
				assert.Zero(t, up.reads, "upstream must not be touched before the last setter")
			}
		}
		assert.Equal(t, StateReady, r.State())
		outputs = append(outputs, readAll(t, r))
	}

	for _, out := range outputs[1:] {
		assert.Equal(t, outputs[0], out)
	}
	assert.Contains(t, outputs[0], `"d": "added"`)
}

func TestTransformReader_NilAdapterIsNotSupplied(t *testing.T) {
	r := NewTransformReader(newUpstream("a: 1\n"))
	r.SetSource(format.YAML)
	r.SetDestination(nil)

	assert.Equal(t, StateUninitialized, r.State())

	r.SetDestination(format.JSON)
	assert.Equal(t, StateReady, r.State())
}

func TestTransformReader_OperationsBeforeSetup(t *testing.T) {
	r := NewTransformReader(newUpstream("a: 1\n"))
	r.SetSource(format.YAML)

	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrConfigurationMissing)

	var serr *StageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageConfigure, serr.Stage)
	assert.Contains(t, err.Error(), ParamDest)
	assert.NotContains(t, err.Error(), ParamSource)

	_, err = r.Skip(1)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.ErrorIs(t, r.Mark(10), ErrConfigurationMissing)
	assert.ErrorIs(t, r.Reset(), ErrConfigurationMissing)
	ready, err := r.Ready()
	assert.False(t, ready)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	_, err = r.WriteTo(io.Discard)
	assert.ErrorIs(t, err, ErrConfigurationMissing)

	assert.Equal(t, StateUninitialized, r.State())
}

func TestTransformReader_RequireMutatorWaits(t *testing.T) {
	r := NewTransformReader(newUpstream("a: 1\n"), RequireMutator())
	r.SetSource(format.YAML)
	r.SetDestination(format.YAML)

	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Contains(t, err.Error(), ParamMutator)

	r.SetMutator(func(n *node.Node) error { return n.Set("a", 2) })
	assert.Equal(t, "a: 2\n", readAll(t, r))
}

func TestTransformReader_FailuresAreCached(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		upErr    error
		source   format.Adapter
		dest     format.Adapter
		mutator  Mutator
		stage    string
		sentinel error
	}{
		{
			name:     "parse",
			input:    "key: [1, 2\n",
			source:   format.YAML,
			dest:     format.JSON,
			stage:    StageParse,
			sentinel: ErrParse,
		},
		{
			name:     "serialize",
			input:    `{"a": null}`,
			source:   format.JSON,
			dest:     format.TOML,
			stage:    StageSerialize,
			sentinel: ErrSerialization,
		},
		{
			name:     "mutator error",
			input:    `{"a": 1}`,
			source:   format.JSON,
			dest:     format.JSON,
			mutator:  func(*node.Node) error { return errors.New("boom") },
			stage:    StageMutate,
			sentinel: ErrMutator,
		},
		{
			name:     "mutator panic",
			input:    `{"a": 1}`,
			source:   format.JSON,
			dest:     format.JSON,
			mutator:  func(*node.Node) error { panic("bad edit") },
			stage:    StageMutate,
			sentinel: ErrMutator,
		},
		{
			name:     "upstream",
			upErr:    errors.New("disk on fire"),
			source:   format.JSON,
			dest:     format.JSON,
			stage:    StageUpstream,
			sentinel: ErrUpstreamIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(tt.input)
			up.err = tt.upErr
			r := NewTransformReader(up, WithName("app.yaml"))
			r.SetMutator(tt.mutator)
			r.SetSource(tt.source)
			r.SetDestination(tt.dest)

			require.Equal(t, StateFailed, r.State())
			cached := r.Err()
			require.Error(t, cached)
			assert.ErrorIs(t, cached, tt.sentinel)

			var serr *StageError
			require.True(t, errors.As(cached, &serr))
			assert.Equal(t, tt.stage, serr.Stage)
			assert.Equal(t, "app.yaml", serr.Meta["name"])
			assert.True(t, strings.HasPrefix(cached.Error(), "app.yaml: "), cached.Error())

			reads := up.reads
			n, err := r.Read(make([]byte, 8))
			assert.Zero(t, n)
			assert.Same(t, serr, err)
			_, err = r.Skip(3)
			assert.Same(t, serr, err)
			_, err = r.Ready()
			assert.Same(t, serr, err)
			assert.Same(t, serr, r.Mark(1))
			assert.Same(t, serr, r.Reset())
			assert.Equal(t, reads, up.reads, "no new attempt after failure")
		})
	}
}

func TestTransformReader_FailedParseKeepsFormats(t *testing.T) {
	r := NewTransformReader(newUpstream("{"))
	r.SetSource(format.JSON)
	r.SetDestination(format.YAML)

	var serr *StageError
	require.True(t, errors.As(r.Err(), &serr))
	assert.Equal(t, "json", serr.Meta["source"])
	assert.Equal(t, "yaml", serr.Meta["dest"])

	var ferr *format.Error
	require.True(t, errors.As(r.Err(), &ferr))
	assert.Equal(t, format.FormatJSON, ferr.Format)
}

func TestTransformReader_SettersAfterResolutionAreIgnored(t *testing.T) {
	up := newUpstream(`{"a": 1}`)
	r := NewTransformReader(up)
	r.SetSource(format.JSON)
	r.SetDestination(format.YAML)
	require.Equal(t, StateReady, r.State())

	r.SetDestination(format.TOML)
	r.SetMutator(func(*node.Node) error { return errors.New("late") })

	assert.Equal(t, "a: 1\n", readAll(t, r))
	assert.Equal(t, StateReady, r.State())
}

func TestTransformReader_StreamOperations(t *testing.T) {
	r := NewTransformReader(newUpstream(`{"abc": "xyz"}`))
	r.SetSource(format.JSON)
	r.SetDestination(format.YAML)

	// output is "abc: xyz\n"
	ready, err := r.Ready()
	require.NoError(t, err)
	assert.True(t, ready)

	skipped, err := r.Skip(5)
	require.NoError(t, err)
	assert.EqualValues(t, 5, skipped)

	require.NoError(t, r.Mark(16))
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(buf[:n]))

	require.NoError(t, r.Reset())
	assert.Equal(t, "xyz\n", readAll(t, r))

	skipped, err = r.Skip(100)
	require.NoError(t, err)
	assert.Zero(t, skipped)

	_, err = r.Skip(-1)
	assert.Error(t, err)
	assert.Error(t, r.Mark(-1))

	require.NoError(t, r.Reset())
	var out bytes.Buffer
	written, err := r.WriteTo(&out)
	require.NoError(t, err)
	assert.EqualValues(t, 4, written)
	assert.Equal(t, "xyz\n", out.String())
}

func TestTransformReader_ResetWithoutMarkRewinds(t *testing.T) {
	r := NewTransformReader(newUpstream(`{"a": 1}`))
	r.SetSource(format.JSON)
	r.SetDestination(format.YAML)

	first := readAll(t, r)
	require.NoError(t, r.Reset())
	assert.Equal(t, first, readAll(t, r))
}

func TestTransformReader_Close(t *testing.T) {
	t.Run("after setup", func(t *testing.T) {
		up := newUpstream(`{"a": 1}`)
		r := NewTransformReader(up)
		r.SetSource(format.JSON)
		r.SetDestination(format.YAML)

		require.NoError(t, r.Close())
		require.NoError(t, r.Close())
		assert.Equal(t, 1, up.closes)

		_, err := r.Read(make([]byte, 1))
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("before setup", func(t *testing.T) {
		up := newUpstream(`{"a": 1}`)
		r := NewTransformReader(up)

		require.NoError(t, r.Close())
		assert.Equal(t, 1, up.closes)
		assert.Zero(t, up.reads)
	})

	t.Run("after failure", func(t *testing.T) {
		up := newUpstream("{")
		r := NewTransformReader(up)
		r.SetSource(format.JSON)
		r.SetDestination(format.YAML)
		require.Equal(t, StateFailed, r.State())

		assert.NoError(t, r.Close(), "the cached error is not reported by Close")
		assert.Equal(t, 1, up.closes)
	})
}

func TestTransformReader_Configure(t *testing.T) {
	r := NewTransformReader(newUpstream("a: 1\n"))

	require.NoError(t, r.Configure(ParamSource, "yml"))
	require.NoError(t, r.Configure(ParamMutator, func(n *node.Node) { n.Delete("a") }))
	require.NoError(t, r.Configure(ParamDest, format.FormatJSON))

	assert.Equal(t, "{}", strings.TrimSpace(readAll(t, r)))

	assert.Error(t, NewTransformReader(newUpstream("")).Configure("colour", "red"))
	assert.Error(t, NewTransformReader(newUpstream("")).Configure(ParamSource, 42))
	assert.Error(t, NewTransformReader(newUpstream("")).Configure(ParamSource, "ini"))
	assert.Error(t, NewTransformReader(newUpstream("")).Configure(ParamMutator, "not a func"))
}

func TestChain(t *testing.T) {
	assert.Nil(t, Chain())
	assert.Nil(t, Chain(nil, nil))

	var calls []string
	m := Chain(
		func(n *node.Node) error { calls = append(calls, "first"); return n.Set("a", 1) },
		nil,
		func(n *node.Node) error { calls = append(calls, "second"); return n.Set("b", n.Int64("a")+1) },
	)

	n := node.New()
	require.NoError(t, m(n))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.EqualValues(t, 2, n.Get("b"))

	failing := Chain(Noop, func(*node.Node) error { return errors.New("stop") }, func(*node.Node) error {
		t.Fatal("must not run after a failure")
		return nil
	})
	assert.EqualError(t, failing(node.New()), "mutator 1: stop")
}
