package format

import (
	"bytes"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/knadh/koanf/v2"
)

type koanfParser struct {
	adapter Adapter
}

// KoanfParser exposes an adapter as a koanf.Parser so any supported syntax
// can feed a koanf instance.
func KoanfParser(a Adapter) koanf.Parser {
	return &koanfParser{adapter: a}
}

func (p *koanfParser) Unmarshal(b []byte) (map[string]any, error) {
	n, err := p.adapter.Read(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return n.Raw(), nil
}

func (p *koanfParser) Marshal(m map[string]any) ([]byte, error) {
	n, err := node.FromMap(m)
	if err != nil {
		return nil, serializationError(p.adapter.Format(), err)
	}
	var buf bytes.Buffer
	if err := p.adapter.Write(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
