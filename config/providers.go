package config

import (
	"context"
	goerrors "errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"syscall"

	"github.com/goliatone/go-cfgfilter/format"
	"github.com/goliatone/go-cfgfilter/koanf/providers/env"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ProviderBuilder creates a Provider bound to a container. Builders run
// when Load is called, so they see the container's final delimiter and
// logger.
type ProviderBuilder[C Validable] func(*Container[C]) (Provider, error)

type ProviderType string

const (
	ProviderTypeDefault   ProviderType = "default"
	ProviderTypeLocalFile ProviderType = "file"
	ProviderTypeEnv       ProviderType = "env"
	ProviderTypeFlag      ProviderType = "pflag"
	ProviderTypeStruct    ProviderType = "struct"
)

var providerTypes = []ProviderType{
	ProviderTypeDefault,
	ProviderTypeLocalFile,
	ProviderTypeEnv,
	ProviderTypeFlag,
	ProviderTypeStruct,
}

func (p ProviderType) String() string {
	return string(p)
}

func (p ProviderType) validate() error {
	if slices.Contains(providerTypes, p) {
		return nil
	}
	valid := make([]string, len(providerTypes))
	for i, t := range providerTypes {
		valid[i] = t.String()
	}
	return errors.New("invalid loader type", errors.CategoryValidation).
		WithTextCode("INVALID_LOADER_TYPE").
		WithMetadata(map[string]any{
			"loader_type": p.String(),
			"valid_types": valid,
		})
}

// Provider is a source of configuration merged into the container.
// Providers load in ascending Priority, later ones overriding earlier keys.
type Provider interface {
	Type() ProviderType
	Priority() int
	Validate() error
	Load(context.Context, *koanf.Koanf) error
}

// Priority orders providers. Gaps leave room for offsets:
//
//	container.WithProvider(FileProvider[C]("base.yaml", PriorityConfig.WithOffset(-5)))
//	container.WithProvider(FileProvider[C]("local.yaml", PriorityConfig.WithOffset(5)))
type Priority int

const (
	PriorityDefaults Priority = 0
	PriorityStruct   Priority = 10
	PriorityConfig   Priority = 20
	PriorityEnv      Priority = 30
	PriorityFlags    Priority = 40
)

func (p Priority) WithOffset(offset int) int {
	return int(p) + offset
}

func (p Priority) or(orders ...int) int {
	if len(orders) > 0 {
		return orders[0]
	}
	return int(p)
}

var (
	DefaultEnvPrefix    = "CFGFILTER_"
	DefaultEnvDelimiter = "__" // single underscores stay in key names
)

// Loader is the Provider every builder in this package returns.
type Loader struct {
	order        int
	providerType ProviderType
	load         func(context.Context, *koanf.Koanf) error
}

func (l *Loader) Priority() int      { return l.order }
func (l *Loader) Type() ProviderType { return l.providerType }
func (l *Loader) Validate() error    { return l.providerType.validate() }
func (l *Loader) Load(ctx context.Context, k *koanf.Koanf) error {
	if l.load == nil {
		return nil
	}
	return l.load(ctx, k)
}

// loadFailure describes the error returned when a koanf source fails.
type loadFailure struct {
	code string
	msg  string
	meta map[string]any
}

// sourceLoader merges src into the tree, parsed with parser when set.
func sourceLoader(kind ProviderType, order int, src koanf.Provider, parser koanf.Parser, fail loadFailure) *Loader {
	return &Loader{
		providerType: kind,
		order:        order,
		load: func(_ context.Context, k *koanf.Koanf) error {
			if err := k.Load(src, parser); err != nil {
				return errors.Wrap(err, errors.CategoryOperation, fail.msg).
					WithTextCode(fail.code).
					WithMetadata(fail.meta)
			}
			return nil
		},
	}
}

func DefaultValuesProvider[C Validable](def map[string]any, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		return sourceLoader(ProviderTypeDefault, PriorityDefaults.or(order...),
			confmap.Provider(def, c.delimiter), nil,
			loadFailure{
				code: "DEFAULT_VALUES_LOAD_FAILED",
				msg:  "failed to load default values",
				meta: map[string]any{"values_count": len(def)},
			}), nil
	}
}

// FileProvider loads a file in any supported syntax, picked from its
// extension. Files without a known extension are read as YAML.
func FileProvider[C Validable](path string, order ...int) ProviderBuilder[C] {
	kind := format.Infer(path, format.FormatYAML)

	return func(c *Container[C]) (Provider, error) {
		c.logger.Debug("file provider %s (%s)", path, kind)
		return sourceLoader(ProviderTypeLocalFile, PriorityConfig.or(order...),
			file.Provider(path), format.KoanfParser(kind.Adapter()),
			loadFailure{
				code: "FILE_LOAD_FAILED",
				msg:  "failed to load configuration from file",
				meta: map[string]any{"filepath": path, "file_type": kind.String()},
			}), nil
	}
}

// EnvProvider reads prefixed variables, lower cases them and splits keys
// on delim. APP_SERVER__PORT=80 with prefix "APP_" and delim "__" sets
// server.port to 80.
func EnvProvider[C Validable](prefix, delim string, order ...int) ProviderBuilder[C] {
	return EnvProviderFrom[C](os.Environ, prefix, delim, order...)
}

// EnvProviderFrom is EnvProvider reading variables from environ instead
// of the process environment.
func EnvProviderFrom[C Validable](environ func() []string, prefix, delim string, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		keyDelim := strings.ToLower(delim)
		toKey := func(name string) string {
			name = strings.ToLower(strings.TrimPrefix(name, prefix))
			if keyDelim == "" {
				return name
			}
			return strings.ReplaceAll(name, keyDelim, c.delimiter)
		}

		src := env.Provider(prefix, c.delimiter, toKey,
			env.WithEnviron(environ), env.WithScalarCoercion())

		return sourceLoader(ProviderTypeEnv, PriorityEnv.or(order...), src, json.Parser(),
			loadFailure{
				code: "ENV_LOAD_FAILED",
				msg:  "failed to load environment variables",
				meta: map[string]any{"prefix": prefix, "delimiter": delim},
			}), nil
	}
}

// FlagsProvider loads flags that were set on the command line. Defaults of
// unchanged flags only fill keys no other source set.
func FlagsProvider[C Validable](flagset *pflag.FlagSet, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		if flagset == nil {
			return nil, errors.New("flagset cannot be nil", errors.CategoryBadInput).
				WithTextCode("NIL_FLAGSET")
		}

		fail := loadFailure{
			code: "FLAGS_LOAD_FAILED",
			msg:  "failed to load configuration from posix flags",
			meta: map[string]any{"delimiter": c.delimiter},
		}

		// posflag needs the tree loaded so far to decide which defaults apply
		return &Loader{
			providerType: ProviderTypeFlag,
			order:        PriorityFlags.or(order...),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				src := posflag.Provider(flagset, c.delimiter, k)
				return sourceLoader(ProviderTypeFlag, 0, src, nil, fail).Load(ctx, k)
			},
		}, nil
	}
}

// StructProvider loads the koanf tagged fields of v.
func StructProvider[C Validable](v Validable, order ...int) ProviderBuilder[C] {
	return func(c *Container[C]) (Provider, error) {
		if v == nil {
			return nil, errors.New("struct cannot be nil", errors.CategoryBadInput).
				WithTextCode("NIL_STRUCT")
		}
		return sourceLoader(ProviderTypeStruct, PriorityStruct.or(order...),
			structs.Provider(v, "koanf"), nil,
			loadFailure{
				code: "STRUCT_LOAD_FAILED",
				msg:  "failed to load configuration from struct",
				meta: map[string]any{},
			}), nil
	}
}

// ErrorFilter reports whether a provider error can be ignored.
type ErrorFilter func(err error) bool

// DefaultErrorFilter ignores the listed errors, or missing files when none
// are given. Parse failures are never ignored by default.
func DefaultErrorFilter(allowedErrors ...error) ErrorFilter {
	if len(allowedErrors) == 0 {
		allowedErrors = []error{fs.ErrNotExist, syscall.ENOENT}
	}
	return func(err error) bool {
		if err == nil {
			return false
		}
		if os.IsNotExist(err) {
			return true
		}
		for _, allowed := range allowedErrors {
			if goerrors.Is(err, allowed) {
				return true
			}
		}
		return false
	}
}

// OptionalProvider wraps a provider so errors accepted by the filter,
// missing files by default, are skipped instead of failing Load.
func OptionalProvider[C Validable](f ProviderBuilder[C], filters ...ErrorFilter) ProviderBuilder[C] {
	ignore := DefaultErrorFilter()
	if len(filters) > 0 && filters[0] != nil {
		ignore = filters[0]
	}

	return func(c *Container[C]) (Provider, error) {
		base, err := f(c)
		if err != nil {
			return nil, err
		}

		return &Loader{
			providerType: base.Type(),
			order:        base.Priority(),
			load: func(ctx context.Context, k *koanf.Koanf) error {
				err := base.Load(ctx, k)
				if err != nil && ignore(err) {
					c.logger.Debug("optional %s provider skipped: %v", base.Type(), err)
					return nil
				}
				return err
			},
		}, nil
	}
}
