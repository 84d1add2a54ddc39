package format

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func read(t *testing.T, a Adapter, text string) *node.Node {
	t.Helper()
	n, err := a.Read(strings.NewReader(text))
	require.NoError(t, err)
	return n
}

func write(t *testing.T, a Adapter, n *node.Node) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf, n))
	return buf.String()
}

func mustNode(t *testing.T, m map[string]any) *node.Node {
	t.Helper()
	n, err := node.FromMap(m)
	require.NoError(t, err)
	return n
}

func TestAdapters_ReadValidDocuments(t *testing.T) {
	tests := []struct {
		name     string
		adapter  Adapter
		input    string
		expected map[string]any
	}{
		{
			name:    "json",
			adapter: JSON,
			input:   `{"a": [1, 2, 3], "b": {"c": "x"}, "d": null}`,
			expected: map[string]any{
				"a": []any{1, 2, 3},
				"b": map[string]any{"c": "x"},
				"d": nil,
			},
		},
		{
			name:    "yaml",
			adapter: YAML,
			input:   "key: value\nlist:\n  - 1\n  - 2\n",
			expected: map[string]any{
				"key":  "value",
				"list": []any{1, 2},
			},
		},
		{
			name:    "toml",
			adapter: TOML,
			input:   "title = \"x\"\n\n[server]\nport = 8080\n",
			expected: map[string]any{
				"title":  "x",
				"server": map[string]any{"port": int64(8080)},
			},
		},
		{
			name:    "hocon",
			adapter: HOCON,
			input:   "a = 1\nb {\n  c = \"x\"\n  d = [1, 2]\n}\nflag = true\n",
			expected: map[string]any{
				"a":    1,
				"b":    map[string]any{"c": "x", "d": []any{1, 2}},
				"flag": true,
			},
		},
		{
			name:    "hcl",
			adapter: HCL,
			input:   "name = \"app\"\nport = 8080\nratio = 0.5\ntags = [\"a\", \"b\"]\nserver = {\n  host = \"localhost\"\n}\n",
			expected: map[string]any{
				"name":   "app",
				"port":   8080,
				"ratio":  0.5,
				"tags":   []any{"a", "b"},
				"server": map[string]any{"host": "localhost"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := read(t, tt.adapter, tt.input)
			assert.Equal(t, tt.expected, n.Raw())
		})
	}
}

func TestXML_ReadKeepsRootAndCastsValues(t *testing.T) {
	n := read(t, XML, `<config><name>app</name><port>8080</port><debug>true</debug></config>`)

	assert.Equal(t, []string{"config"}, n.Keys())
	assert.Equal(t, "app", n.Get("config.name"))
	assert.EqualValues(t, 8080, n.Get("config.port"))
	assert.Equal(t, true, n.Get("config.debug"))
}

func TestJSON_ReadKeepsIntegerPrecision(t *testing.T) {
	input := `{"id": 9007199254740993, "big": 12345678901234567890, "neg": -3, "ratio": 0.5, "exp": 1e3}`

	n := read(t, JSON, input)

	assert.Equal(t, 9007199254740993, n.Get("id"))
	assert.Equal(t, uint64(12345678901234567890), n.Get("big"))
	assert.Equal(t, -3, n.Get("neg"))
	assert.Equal(t, 0.5, n.Get("ratio"))
	assert.Equal(t, 1000.0, n.Get("exp"))

	out := write(t, JSON, n)
	assert.Contains(t, out, "9007199254740993")
	assert.Contains(t, out, "12345678901234567890")
}

func TestXML_ReadCastsOnlyLiterals(t *testing.T) {
	n := read(t, XML, `<grades><alice>T</alice><bob>f</bob><carol>false</carol><zip>007</zip><avg>2.5</avg><tag>Inf</tag></grades>`)

	assert.Equal(t, map[string]any{
		"grades": map[string]any{
			"alice": "T",
			"bob":   "f",
			"carol": false,
			"zip":   "007",
			"avg":   2.5,
			"tag":   "Inf",
		},
	}, n.Raw())
}

func TestHOCON_ReadDecodesEscapes(t *testing.T) {
	n := read(t, HOCON, `path = "C:\\dir"
quote = "say \"hi\""
lines = "a\nb"
"log.level" = "debug"
tail = "ends with \""
`)

	assert.Equal(t, map[string]any{
		"path":      `C:\dir`,
		"quote":     `say "hi"`,
		"lines":     "a\nb",
		"log.level": "debug",
		"tail":      `ends with "`,
	}, n.Raw())
}

func TestAdapters_ReadInvalidDocuments(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		input   string
	}{
		{"json truncated", JSON, `{"a": `},
		{"json root array", JSON, `[1, 2]`},
		{"json trailing data", JSON, `{"a": 1} {"b": 2}`},
		{"yaml unterminated flow", YAML, "key: [1, 2\n"},
		{"yaml root scalar", YAML, "just a string\n"},
		{"toml", TOML, "a = = 1\n"},
		{"hocon", HOCON, "a = {\n"},
		{"xml", XML, "<config><name>app</config>"},
		{"hcl syntax", HCL, "name = \n"},
		{"hcl block", HCL, "server {\n  host = \"x\"\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.adapter.Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, n)
			assert.ErrorIs(t, err, ErrParse)

			var ferr *Error
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, tt.adapter.Format(), ferr.Format)
			assert.Equal(t, "parse", ferr.Op)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestAdapters_ReadReportsIOErrors(t *testing.T) {
	_, err := YAML.Read(failingReader{})
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrParse)
}

func TestAdapters_WriteUnsupportedValues(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		tree    map[string]any
	}{
		{"toml null", TOML, map[string]any{"a": map[string]any{"b": nil}}},
		{"toml mixed array", TOML, map[string]any{"a": []any{"x", 1}}},
		{"hcl identifier", HCL, map[string]any{"has space": 1}},
		{"xml name", XML, map[string]any{"config": map[string]any{"1abc": "x"}}},
		{"json nan", JSON, map[string]any{"n": math.NaN()}},
		{"hocon nan", HOCON, map[string]any{"n": math.Inf(1)}},
		{"hocon struct", HOCON, map[string]any{"c": struct{ X int }{X: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := tt.adapter.Write(&buf, mustNode(t, tt.tree))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerialization)
			assert.Zero(t, buf.Len(), "nothing must reach the writer on failure")
		})
	}
}

func TestAdapters_WriteNilNode(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, JSON.Write(&buf, nil), ErrSerialization)
}

func TestJSON_WriteIndentOption(t *testing.T) {
	n := mustNode(t, map[string]any{"b": 1, "a": map[string]any{"url": "http://x?a=1&b=2"}})

	out := write(t, JSON, n)
	assert.True(t, strings.HasPrefix(out, "{\n  \"a\""), out)
	assert.Contains(t, out, "&b=2", "HTML characters are not escaped")
	assert.Equal(t, "http://x?a=1&b=2", gjson.Get(out, "a.url").String())

	wide := write(t, JSON.Configured(WithIndent(4)), n)
	assert.Contains(t, wide, "\n    \"a\"")

	compact := write(t, JSON.Configured(WithIndent(0)), n)
	assert.Equal(t, "{\"a\":{\"url\":\"http://x?a=1&b=2\"},\"b\":1}\n", compact)
}

func TestYAML_WriteIndentOption(t *testing.T) {
	n := mustNode(t, map[string]any{"a": map[string]any{"b": 1}})

	assert.Equal(t, "a:\n  b: 1\n", write(t, YAML, n))
	assert.Equal(t, "a:\n    b: 1\n", write(t, YAML.Configured(WithIndent(4)), n))
}

func TestConfigured_DoesNotMutateOriginal(t *testing.T) {
	n := mustNode(t, map[string]any{"a": map[string]any{"b": 1}})

	_ = YAML.Configured(WithIndent(8))

	assert.Equal(t, "a:\n  b: 1\n", write(t, YAML, n))
}

func TestHOCON_Write(t *testing.T) {
	n := mustNode(t, map[string]any{
		"name":  "app",
		"a.b":   1,
		"empty": map[string]any{},
		"list":  []any{1, "two"},
		"nested": map[string]any{
			"on": true,
		},
		"include": "x",
	})

	out := write(t, HOCON, n)

	assert.Contains(t, out, "\"a.b\" = 1\n")
	assert.Contains(t, out, "\"include\" = \"x\"\n")
	assert.Contains(t, out, "empty = {}\n")
	assert.Contains(t, out, "list = [\n  1,\n  \"two\"\n]\n")
	assert.Contains(t, out, "nested = {\n  on = true\n}\n")
	assert.Contains(t, out, "name = \"app\"\n")

	colon := write(t, HOCON.Configured(WithSeparator(":")), mustNode(t, map[string]any{"a": 1}))
	assert.Equal(t, "a : 1\n", colon)
}

func TestXML_WriteWrapsMultipleKeys(t *testing.T) {
	out := write(t, XML, mustNode(t, map[string]any{"a": 1, "b": "x"}))

	back := read(t, XML, out)
	assert.Equal(t, []string{"config"}, back.Keys())
	assert.EqualValues(t, 1, back.Get("config.a"))
	assert.Equal(t, "x", back.Get("config.b"))

	custom := write(t, XML.Configured(WithRootTag("settings")), mustNode(t, map[string]any{"a": 1, "b": 2}))
	assert.True(t, strings.HasPrefix(custom, "<settings>"), custom)
}

func TestXML_WriteSingleRootIsKept(t *testing.T) {
	out := write(t, XML, mustNode(t, map[string]any{"server": map[string]any{"port": 80}}))

	assert.True(t, strings.HasPrefix(out, "<server>"), out)
}

func TestHCL_Write(t *testing.T) {
	n := mustNode(t, map[string]any{
		"name":   "app",
		"port":   8080,
		"tags":   []any{"a", "b"},
		"server": map[string]any{"host": "localhost"},
	})

	out := write(t, HCL, n)
	back := read(t, HCL, out)

	assert.Equal(t, n.Raw(), back.Raw())
}

func TestKoanfParser(t *testing.T) {
	p := KoanfParser(YAML)

	m, err := p.Unmarshal([]byte("a:\n  b: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, m)

	b, err := p.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "a:\n  b: 1\n", string(b))

	_, err = p.Unmarshal([]byte("a: [\n"))
	assert.ErrorIs(t, err, ErrParse)
}

func TestAdapters_ReadAppliesPathDelimiter(t *testing.T) {
	n := read(t, JSON.Configured(WithPathDelimiter("/")), `{"a.b": {"c": 1}}`)

	assert.EqualValues(t, 1, n.Get("a.b/c"))
}
