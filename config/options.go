package config

import (
	"time"

	"github.com/goliatone/go-cfgfilter/koanf/solvers"
	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/goliatone/go-errors"
)

// Option configures a container created by NewWithOptions.
type Option[C Validable] func(c *Container[C]) error

// always wraps a setter that cannot fail.
func always[C Validable](fn func(*Container[C])) Option[C] {
	return func(c *Container[C]) error {
		fn(c)
		return nil
	}
}

func WithValidation[C Validable](v bool) Option[C] {
	return always(func(c *Container[C]) { c.WithValidation(v) })
}

func WithConfigPath[C Validable](p string) Option[C] {
	return always(func(c *Container[C]) { c.WithConfigPath(p) })
}

// WithoutDefaultConfigPath stops Load from reading cfgfilter.yaml when no
// provider is registered.
func WithoutDefaultConfigPath[C Validable]() Option[C] {
	return WithConfigPath[C]("")
}

// WithDelimiter sets the key path delimiter used by every provider.
func WithDelimiter[C Validable](delim string) Option[C] {
	return func(c *Container[C]) error {
		if delim == "" {
			return errors.New("delimiter cannot be empty", errors.CategoryBadInput).
				WithTextCode("EMPTY_DELIMITER")
		}
		c.delimiter = delim
		return nil
	}
}

// WithTimeout bounds Load. The timeout must be positive.
func WithTimeout[C Validable](timeout time.Duration) Option[C] {
	return func(c *Container[C]) error {
		if timeout <= 0 {
			return errors.New("load timeout must be positive", errors.CategoryBadInput).
				WithTextCode("INVALID_TIMEOUT").
				WithMetadata(map[string]any{"timeout": timeout.String()})
		}
		c.WithTimeout(timeout)
		return nil
	}
}

func WithSolver[C Validable](slvrs ...solvers.ConfigSolver) Option[C] {
	return always(func(c *Container[C]) { c.WithSolver(slvrs...) })
}

// WithoutSolvers disables reference and expression resolution.
func WithoutSolvers[C Validable]() Option[C] {
	return always(func(c *Container[C]) { c.solvers = nil })
}

func WithLogger[C Validable](l logger.Logger) Option[C] {
	return always(func(c *Container[C]) { c.WithLogger(l) })
}

// WithLoader builds providers right away, with the container as configured
// by the options before it. Container.WithProvider defers building to Load.
func WithLoader[C Validable](builders ...ProviderBuilder[C]) Option[C] {
	return func(c *Container[C]) error {
		for i, build := range builders {
			p, err := build(c)
			if err != nil {
				return errors.Wrap(err, errors.CategoryOperation, "failed to create loader provider").
					WithTextCode("PROVIDER_CREATION_FAILED").
					WithMetadata(map[string]any{
						"factory_index":   i,
						"total_factories": len(builders),
					})
			}
			c.providers = append(c.providers, p)
		}
		return nil
	}
}
