package node

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// ErrDecode wraps mapstructure failures.
var ErrDecode = errors.New("node: decode failed")

type DecodeOption func(*mapstructure.DecoderConfig)

// WithTagName overrides the struct tag used while decoding (default "koanf").
func WithTagName(tag string) DecodeOption {
	return func(c *mapstructure.DecoderConfig) {
		if tag != "" {
			c.TagName = tag
		}
	}
}

// WithStrictKeys fails the decode when the tree holds keys the target does not declare.
func WithStrictKeys() DecodeOption {
	return func(c *mapstructure.DecoderConfig) {
		c.ErrorUnused = true
	}
}

// WithDecodeHooks appends hooks after the default duration/slice/text hooks.
func WithDecodeHooks(hooks ...mapstructure.DecodeHookFunc) DecodeOption {
	return func(c *mapstructure.DecoderConfig) {
		all := []mapstructure.DecodeHookFunc{c.DecodeHook}
		for _, h := range hooks {
			if h != nil {
				all = append(all, h)
			}
		}
		c.DecodeHook = mapstructure.ComposeDecodeHookFunc(all...)
	}
}

// Decode decodes the sub tree at path (whole tree when empty) into out,
// which must be a pointer.
func (n *Node) Decode(path string, out any, opts ...DecodeOption) error {
	return DecodeValue(n.Get(path), out, opts...)
}

// DecodeValue decodes an arbitrary tree value with the same settings as Node.Decode.
func DecodeValue(input, out any, opts ...DecodeOption) error {
	conf := &mapstructure.DecoderConfig{
		TagName:          "koanf",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(conf)
		}
	}

	decoder, err := mapstructure.NewDecoder(conf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
