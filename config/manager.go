package config

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/goliatone/go-cfgfilter/koanf/solvers"
	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/goliatone/go-cfgfilter/node"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/v2"
)

var (
	DefaultDelimiter      = "."
	DefaultConfigFilepath = "cfgfilter.yaml"
	DefaultLoadTimeout    = 30 * time.Second
)

type Validable interface {
	Validate() error
}

type Normalizer[C any] func(C) error
type Validator[C any] func(C) error

type Container[C Validable] struct {
	K            *koanf.Koanf
	base         C
	providers    []Provider
	mustValidate bool
	strictDecode bool
	normalizers  []Normalizer[C]
	validators   []Validator[C]
	loadTimeout  time.Duration
	delimiter    string
	configPath   string
	solvers      []solvers.ConfigSolver
	solverPasses int
	logger       logger.Logger

	loaders []ProviderBuilder[C]
}

func (c *Container[C]) WithValidation(v bool) *Container[C] {
	c.mustValidate = v
	return c
}

// WithStrictDecode fails Load when the loaded tree has keys the target
// type does not declare.
func (c *Container[C]) WithStrictDecode(enabled bool) *Container[C] {
	c.strictDecode = enabled
	return c
}

// WithNormalizer adds functions run on the decoded value before
// validation, in order.
func (c *Container[C]) WithNormalizer(normalizers ...Normalizer[C]) *Container[C] {
	for _, normalizer := range normalizers {
		if normalizer != nil {
			c.normalizers = append(c.normalizers, normalizer)
		}
	}
	return c
}

// WithValidator adds checks run after the value's own Validate.
func (c *Container[C]) WithValidator(validators ...Validator[C]) *Container[C] {
	for _, validator := range validators {
		if validator != nil {
			c.validators = append(c.validators, validator)
		}
	}
	return c
}

// WithTimeout bounds a whole Load, every provider included.
func (c *Container[C]) WithTimeout(timeout time.Duration) *Container[C] {
	c.loadTimeout = timeout
	return c
}

func (c *Container[C]) WithConfigPath(p string) *Container[C] {
	c.configPath = p
	return c
}

func (c *Container[C]) WithSolver(slvrs ...solvers.ConfigSolver) *Container[C] {
	c.solvers = append(c.solvers, slvrs...)
	return c
}

// WithSolvers replaces the solver list, allowing explicit ordering.
func (c *Container[C]) WithSolvers(slvrs ...solvers.ConfigSolver) *Container[C] {
	c.solvers = append([]solvers.ConfigSolver{}, slvrs...)
	return c
}

// WithSolverPasses sets the maximum number of solver passes (minimum 1).
func (c *Container[C]) WithSolverPasses(passes int) *Container[C] {
	if passes < 1 {
		passes = 1
	}
	c.solverPasses = passes
	return c
}

func (c *Container[C]) WithLogger(l logger.Logger) *Container[C] {
	if l != nil {
		c.logger = l
	}
	return c
}

func (c *Container[C]) WithProvider(factories ...ProviderBuilder[C]) *Container[C] {
	for _, factory := range factories {
		if factory != nil {
			c.loaders = append(c.loaders, factory)
		}
	}
	return c
}

func New[C Validable](c C) *Container[C] {
	mgr := &Container[C]{
		mustValidate: true,
		base:         c,
		delimiter:    DefaultDelimiter,
		loadTimeout:  DefaultLoadTimeout,
		configPath:   DefaultConfigFilepath,
		logger:       logger.NewDefaultLogger("config"),
		solverPasses: 1,
		solvers:      solvers.Defaults(),
	}

	mgr.newConfig()

	return mgr
}

// NewWithOptions is New followed by opts, in order.
func NewWithOptions[C Validable](c C, opts ...Option[C]) (*Container[C], error) {
	mgr := New(c)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(mgr); err != nil {
			return nil, err
		}
	}
	mgr.newConfig()
	return mgr, nil
}

func (c *Container[C]) newConfig() {
	c.K = koanf.NewWithConf(koanf.Conf{Delim: c.delimiter})
}

// Validate runs the value's own Validate, then every registered validator.
// The error metadata carries the failing check, 0 being the value itself.
func (c *Container[C]) Validate() error {
	self := func(v C) error { return v.Validate() }
	checks := append([]Validator[C]{self}, c.validators...)
	for i, check := range checks {
		if err := check(c.base); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "configuration validation failed").
				WithTextCode("CONFIG_VALIDATION_FAILED").
				WithMetadata(map[string]any{"validator_index": i})
		}
	}
	return nil
}

func (c *Container[C]) MustLoad(ctx context.Context) {
	if err := c.Load(ctx); err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
}

// Load rebuilds the tree from every provider, resolves references and
// decodes the result into the container's value. Keys dropped from a
// source since the last Load are gone afterwards.
func (c *Container[C]) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	c.newConfig()

	sources, err := c.sources()
	if err != nil {
		return err
	}
	if err := c.merge(ctx, sources); err != nil {
		return err
	}

	if passes := solvers.Run(c.K, c.solverPasses, c.solvers...); passes > 0 {
		c.logger.Debug("solvers ran %d pass(es)", passes)
	}

	if err := c.decode(); err != nil {
		return err
	}

	for i, normalize := range c.normalizers {
		if err := normalize(c.base); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "configuration normalization failed").
				WithTextCode("CONFIG_NORMALIZE_FAILED").
				WithMetadata(map[string]any{"normalizer_index": i})
		}
	}

	if !c.mustValidate {
		return nil
	}
	return c.Validate()
}

// sources returns eager providers plus the ones built from builders,
// ordered by priority. With no providers at all the config path is read,
// if present.
func (c *Container[C]) sources() ([]Provider, error) {
	out := slices.Clone(c.providers)
	for i, build := range c.loaders {
		p, err := build(c)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create provider").
				WithTextCode("PROVIDER_CREATION_FAILED").
				WithMetadata(map[string]any{
					"factory_index":   i,
					"total_factories": len(c.loaders),
				})
		}
		out = append(out, p)
	}

	if len(out) == 0 && c.configPath != "" {
		c.logger.Debug("no providers specified, loading %s", c.configPath)
		p, err := OptionalProvider(FileProvider[C](c.configPath))(c)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create default file provider").
				WithTextCode("DEFAULT_PROVIDER_FAILED").
				WithMetadata(map[string]any{"config_path": c.configPath})
		}
		out = append(out, p)
	}

	for i, p := range out {
		if err := p.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "invalid provider source type").
				WithTextCode("INVALID_PROVIDER_TYPE").
				WithMetadata(map[string]any{
					"source_type":    p.Type().String(),
					"provider_index": i,
				})
		}
	}

	slices.SortStableFunc(out, func(a, b Provider) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	return out, nil
}

func (c *Container[C]) merge(ctx context.Context, sources []Provider) error {
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.logger.Debug("loading %s source (priority %d)", src.Type(), src.Priority())
		if err := src.Load(ctx, c.K); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to load configuration from source").
				WithTextCode("CONFIG_LOAD_FAILED").
				WithMetadata(map[string]any{
					"source_type":   src.Type().String(),
					"source_index":  i,
					"total_sources": len(sources),
				})
		}
	}
	return nil
}

func (c *Container[C]) decode() error {
	var opts []node.DecodeOption
	if c.strictDecode {
		opts = append(opts, node.WithStrictKeys())
	}
	if err := node.DecodeValue(c.K.Raw(), &c.base, opts...); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to unmarshal configuration data").
			WithTextCode("CONFIG_UNMARSHAL_FAILED").
			WithMetadata(map[string]any{
				"delimiter":     c.delimiter,
				"strict_decode": c.strictDecode,
			})
	}
	return nil
}

func (c *Container[C]) Raw() C {
	return c.base
}
