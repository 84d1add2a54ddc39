package config

import (
	"context"
	"fmt"

	"github.com/goliatone/go-cfgfilter/edits"
	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/goliatone/go-cfgfilter/format"
	"github.com/goliatone/go-cfgfilter/pipeline"
	"github.com/goliatone/go-errors"
	"github.com/spf13/pflag"
)

// Manifest describes a set of copy tasks run by the cfgfilter CLI.
//
//	workers: 4
//	tasks:
//	  - name: configs
//	    from: ./conf
//	    into: ./dist
//	    include: ["**/*.yaml"]
//	    source: yaml
//	    destination: json
//	    edits:
//	      - {op: set, path: build.env, value: prod}
type Manifest struct {
	Workers  int    `koanf:"workers" json:"workers,omitempty" yaml:"workers,omitempty"`
	LogLevel string `koanf:"log_level" json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Tasks    []Task `koanf:"tasks" json:"tasks" yaml:"tasks"`
}

// Task is a single copy with its filters.
type Task struct {
	Name        string       `koanf:"name" json:"name" yaml:"name"`
	From        string       `koanf:"from" json:"from" yaml:"from"`
	Into        string       `koanf:"into" json:"into" yaml:"into"`
	Include     []string     `koanf:"include" json:"include,omitempty" yaml:"include,omitempty"`
	Exclude     []string     `koanf:"exclude" json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Check       string       `koanf:"validate" json:"validate,omitempty" yaml:"validate,omitempty"`
	Source      string       `koanf:"source" json:"source,omitempty" yaml:"source,omitempty"`
	Destination string       `koanf:"destination" json:"destination,omitempty" yaml:"destination,omitempty"`
	Rename      string       `koanf:"rename" json:"rename,omitempty" yaml:"rename,omitempty"`
	Indent      *int         `koanf:"indent" json:"indent,omitempty" yaml:"indent,omitempty"`
	Edits       []edits.Edit `koanf:"edits" json:"edits,omitempty" yaml:"edits,omitempty"`
}

func (m *Manifest) Validate() error {
	if m == nil || len(m.Tasks) == 0 {
		return errors.New("manifest has no tasks", errors.CategoryValidation).
			WithTextCode("EMPTY_MANIFEST")
	}
	if m.Workers < 0 {
		return errors.New("workers cannot be negative", errors.CategoryValidation).
			WithTextCode("INVALID_WORKERS").
			WithMetadata(map[string]any{"workers": m.Workers})
	}

	seen := make(map[string]int, len(m.Tasks))
	for i, t := range m.Tasks {
		if err := t.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid manifest task").
				WithTextCode("INVALID_TASK").
				WithMetadata(map[string]any{"task_index": i, "task": t.Name})
		}
		if t.Name == "" {
			continue
		}
		if j, ok := seen[t.Name]; ok {
			return errors.New("duplicate task name", errors.CategoryValidation).
				WithTextCode("DUPLICATE_TASK").
				WithMetadata(map[string]any{"task": t.Name, "first_index": j, "task_index": i})
		}
		seen[t.Name] = i
	}
	return nil
}

// Label names the task in logs and errors.
func (t Task) Label(index int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task %d", index)
}

func (t Task) Validate() error {
	if t.From == "" || t.Into == "" {
		return errors.New("from and into are required", errors.CategoryValidation).
			WithTextCode("MISSING_DIRECTORY").
			WithMetadata(map[string]any{"from": t.From, "into": t.Into})
	}
	if t.Source == "" && (t.Destination != "" || len(t.Edits) > 0 || t.Indent != nil) {
		return errors.New("source format is required to convert or edit", errors.CategoryValidation).
			WithTextCode("MISSING_SOURCE_FORMAT")
	}
	for _, name := range []string{t.Check, t.Source, t.Destination} {
		if name == "" {
			continue
		}
		if _, err := format.ParseFormat(name); err != nil {
			return err
		}
	}
	if t.Indent != nil && *t.Indent < 0 {
		return errors.New("indent cannot be negative", errors.CategoryValidation).
			WithTextCode("INVALID_INDENT").
			WithMetadata(map[string]any{"indent": *t.Indent})
	}
	for i, e := range t.Edits {
		if err := e.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid task edit").
				WithTextCode("INVALID_TASK_EDIT").
				WithMetadata(map[string]any{"edit_index": i})
		}
	}
	return nil
}

// CopySpec builds the pipeline copy for the task. Filters are attached in
// this order: validation, then conversion or in place editing. When the
// destination format differs and no rename is given, files take the
// destination's first extension.
func (t Task) CopySpec(opts ...pipeline.Option) (*pipeline.CopySpec, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	spec := pipeline.NewCopySpec(t.From, t.Into, opts...).
		Include(t.Include...).
		Exclude(t.Exclude...)

	if t.Check != "" {
		a, err := format.Lookup(t.Check)
		if err != nil {
			return nil, err
		}
		filter.Validate(spec, a)
	}

	rename := t.Rename
	if t.Source != "" {
		src, _ := format.ParseFormat(t.Source)
		dst := src
		if t.Destination != "" {
			dst, _ = format.ParseFormat(t.Destination)
		}

		mutator, err := edits.Compile(t.Edits...)
		if err != nil {
			return nil, err
		}

		dest := dst.Adapter()
		if t.Indent != nil {
			dest = dest.Configured(format.WithIndent(*t.Indent))
		}

		switch {
		case src != dst || t.Indent != nil:
			var mutators []filter.Mutator
			if mutator != nil {
				mutators = append(mutators, mutator)
			}
			filter.ConvertFormat(spec, src.Adapter(), dest, mutators...)
		case mutator != nil:
			filter.Transform(spec, dest, mutator)
		}

		if rename == "" && src != dst {
			rename = dst.Extensions()[0]
		}
	}

	if rename != "" {
		spec.Rename(pipeline.ReplaceExtension(rename))
	}
	return spec, nil
}

// TaskResult is the outcome of one task run by Manifest.Run.
type TaskResult struct {
	Task    string
	Entries []pipeline.Entry
}

// Run executes the tasks in order and stops at the first failing task.
// Results of the tasks that ran are returned either way.
func (m *Manifest) Run(ctx context.Context, opts ...pipeline.Option) ([]TaskResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Workers > 0 {
		opts = append(opts, pipeline.WithWorkers(m.Workers))
	}

	results := make([]TaskResult, 0, len(m.Tasks))
	for i, t := range m.Tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		spec, err := t.CopySpec(opts...)
		if err != nil {
			return results, err
		}
		entries, err := spec.Run(ctx)
		results = append(results, TaskResult{Task: t.Label(i), Entries: entries})
		if err != nil {
			return results, fmt.Errorf("%s: %w", t.Label(i), err)
		}
	}
	return results, nil
}

// ManifestSource lists where LoadManifest reads from. Later sources win:
// file, then environment, then flags.
type ManifestSource struct {
	Path    string
	Environ func() []string
	Flags   *pflag.FlagSet
}

// ManifestDefaults holds the values a manifest starts from. Workers left
// at 0 means one worker per CPU.
func ManifestDefaults() map[string]any {
	return map[string]any{
		"workers":   0,
		"log_level": "info",
	}
}

// LoadManifest loads, resolves, decodes and validates a manifest.
func LoadManifest(ctx context.Context, src ManifestSource, opts ...Option[*Manifest]) (*Manifest, error) {
	m := &Manifest{}
	c, err := NewWithOptions(m, append([]Option[*Manifest]{WithoutDefaultConfigPath[*Manifest]()}, opts...)...)
	if err != nil {
		return nil, err
	}

	c.WithProvider(DefaultValuesProvider[*Manifest](ManifestDefaults()))
	if src.Path != "" {
		c.WithProvider(FileProvider[*Manifest](src.Path))
	}
	if src.Environ != nil {
		c.WithProvider(EnvProviderFrom[*Manifest](src.Environ, DefaultEnvPrefix, DefaultEnvDelimiter))
	}
	if src.Flags != nil {
		c.WithProvider(FlagsProvider[*Manifest](src.Flags))
	}

	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c.Raw(), nil
}
