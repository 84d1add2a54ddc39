package format

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textRunes mixes characters every adapter has to escape or quote with
// plain and non ASCII letters.
var textRunes = []rune(`ab Z09_-.:/\"'${}[]#=,%@é日本`)

func genText() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(textRunes)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteRune(textRunes[i])
		}
		return b.String()
	})
}

var (
	anyText  = genText().Map(func(s string) any { return s })
	anyInt   = gen.Int64Range(0, 1<<40).Map(func(i int64) any { return i })
	anyBool  = gen.Bool().Map(func(b bool) any { return b })
	anyValue = gen.OneGenOf(anyText, anyInt, anyBool)
)

// Empty lists and maps are filled in, since adapters disagree on how an
// empty table reads back. Lists hold one kind of value, the only arrays
// the TOML encoder writes.
func genList(items gopter.Gen) gopter.Gen {
	return gen.SliceOf(items).Map(func(v []any) any {
		if len(v) == 0 {
			return []any{"item"}
		}
		return v
	})
}

func genMap(values gopter.Gen) gopter.Gen {
	return gen.MapOf(gen.Identifier(), values).Map(func(m map[string]any) map[string]any {
		if len(m) == 0 {
			return map[string]any{"key": "value"}
		}
		return m
	})
}

// genTree builds trees two levels deep holding scalars and scalar lists.
func genTree() gopter.Gen {
	leaf := gen.OneGenOf(anyValue, genList(anyText), genList(anyInt), genList(anyBool))
	inner := genMap(leaf).Map(func(m map[string]any) any { return m })
	return genMap(gen.OneGenOf(leaf, inner))
}

// canonical folds the integer types adapters return into int64.
func canonical(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = canonical(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonical(item)
		}
		return out
	case int:
		return int64(val)
	case uint64:
		return int64(val)
	default:
		return v
	}
}

func roundTrip(a Adapter, n *node.Node) (*node.Node, error) {
	var buf bytes.Buffer
	if err := a.Write(&buf, n); err != nil {
		return nil, err
	}
	return a.Read(&buf)
}

// TestRoundTripProperties checks that writing a tree and reading it back
// yields the same tree for every adapter.
func TestRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.MaxSize = 8
	properties := gopter.NewProperties(parameters)

	for _, a := range []Adapter{JSON, YAML, TOML, HOCON, HCL} {
		a := a
		properties.Property(a.Format().String()+" write then read is identity", prop.ForAll(
			func(m map[string]any) bool {
				n, err := node.FromMap(m)
				if err != nil {
					return false
				}
				back, err := roundTrip(a, n)
				if err != nil {
					return false
				}
				return reflect.DeepEqual(canonical(n.Raw()), canonical(back.Raw()))
			},
			genTree(),
		))
	}

	// XML casts element text on read, so the tree is only stable after the
	// first pass.
	properties.Property("xml round trip is stable", prop.ForAll(
		func(m map[string]string) bool {
			tree := make(map[string]any, len(m))
			for k, v := range m {
				tree[k] = v
			}
			n, err := node.FromMap(map[string]any{"config": tree})
			if err != nil {
				return false
			}
			first, err := roundTrip(XML, n)
			if err != nil {
				return false
			}
			second, err := roundTrip(XML, first)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(first.Raw(), second.Raw())
		},
		gen.MapOf(gen.Identifier(), gen.AlphaNumString()),
	))

	properties.TestingRun(t)
}

func TestRoundTrip_EscapedStrings(t *testing.T) {
	tree := map[string]any{
		"path":  `C:\dir`,
		"quote": `say "hi"`,
		"lines": "a\nb",
		"tab":   "a\tb",
		"tail":  `ends with "`,
		"slash": `trailing \`,
		"ref":   "${not.a.ref} and %{x}",
		"port":  8080,
		"debug": true,
		"tags":  []any{"a", `b"c`, `d\e`},
		"ports": []any{80, 443},
		"server": map[string]any{
			"host":  "localhost",
			"notes": `"quoted" \ text`,
		},
	}

	for _, a := range []Adapter{JSON, YAML, TOML, HOCON, HCL} {
		t.Run(a.Format().String(), func(t *testing.T) {
			n, err := node.FromMap(tree)
			require.NoError(t, err)

			once, err := roundTrip(a, n)
			require.NoError(t, err)
			assert.Equal(t, canonical(tree), canonical(once.Raw()))

			twice, err := roundTrip(a, once)
			require.NoError(t, err)
			assert.Equal(t, canonical(once.Raw()), canonical(twice.Raw()))
		})
	}

	t.Run("json to hocon to json", func(t *testing.T) {
		n := read(t, JSON, `{"path": "C:\\dir", "quote": "say \"hi\"", "lines": "a\nb"}`)

		back, err := roundTrip(JSON, readBack(t, HOCON, n))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"path":  `C:\dir`,
			"quote": `say "hi"`,
			"lines": "a\nb",
		}, back.Raw())
	})
}

func readBack(t *testing.T, a Adapter, n *node.Node) *node.Node {
	t.Helper()
	back, err := roundTrip(a, n)
	require.NoError(t, err)
	return back
}
