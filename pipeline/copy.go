// Package pipeline is a small file copy host for the filters in package
// filter.
//
// A CopySpec copies a directory tree from one location to another on an
// afero file system. Files matching the include patterns (all files when
// none are given) have every registered filter applied and may be renamed;
// other files are copied verbatim. Excluded files are skipped. Patterns use
// doublestar syntax and match paths relative to the source directory.
//
// Targets are written only after their filtered content was read in full,
// so a failing file never leaves a partial output behind.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/goliatone/go-errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// FileError names the file whose copy failed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Entry describes one copied file.
type Entry struct {
	Source   string
	Target   string
	Filtered bool
	Bytes    int
}

type registration struct {
	params  filter.Params
	factory filter.Factory
}

type Option func(*CopySpec)

// WithFs sets the file system both directories live on. Defaults to the
// OS file system.
func WithFs(fs afero.Fs) Option {
	return func(c *CopySpec) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithWorkers bounds the number of files copied concurrently.
func WithWorkers(n int) Option {
	return func(c *CopySpec) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *CopySpec) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFileMode sets the permission bits of written files.
func WithFileMode(mode os.FileMode) Option {
	return func(c *CopySpec) {
		c.mode = mode
	}
}

// CopySpec is a reusable description of a copy. It implements
// filter.ContentFilterable.
type CopySpec struct {
	from    string
	into    string
	fs      afero.Fs
	include []string
	exclude []string
	filters []registration
	rename  func(string) string
	workers int
	mode    os.FileMode
	logger  logger.Logger
}

func NewCopySpec(from, into string, opts ...Option) *CopySpec {
	c := &CopySpec{
		from:    from,
		into:    into,
		fs:      afero.NewOsFs(),
		workers: runtime.GOMAXPROCS(0),
		mode:    0o644,
		logger:  logger.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Include adds patterns selecting the files filters and renames apply to.
func (c *CopySpec) Include(patterns ...string) *CopySpec {
	c.include = append(c.include, patterns...)
	return c
}

// Exclude adds patterns for files that are not copied at all.
func (c *CopySpec) Exclude(patterns ...string) *CopySpec {
	c.exclude = append(c.exclude, patterns...)
	return c
}

// Filter registers a filter applied, in registration order, to every
// matched file.
func (c *CopySpec) Filter(params filter.Params, factory filter.Factory) {
	c.filters = append(c.filters, registration{params: params, factory: factory})
}

// Rename sets the function mapping a matched file's relative path to its
// target path.
func (c *CopySpec) Rename(fn func(string) string) *CopySpec {
	c.rename = fn
	return c
}

// Validate checks the patterns and directories before anything is copied.
func (c *CopySpec) Validate() error {
	if c.from == "" || c.into == "" {
		return errors.New("source and target directories are required", errors.CategoryValidation).
			WithTextCode("MISSING_DIRECTORY").
			WithMetadata(map[string]any{"from": c.from, "into": c.into})
	}
	for _, p := range append(append([]string{}, c.include...), c.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return errors.New("invalid glob pattern", errors.CategoryValidation).
				WithTextCode("INVALID_PATTERN").
				WithMetadata(map[string]any{"pattern": p})
		}
	}
	return nil
}

// Run copies every file under the source directory. The first failure
// cancels files not yet started and is returned as a *FileError.
func (c *CopySpec) Run(ctx context.Context) ([]Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	files, err := c.collect()
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		entries = make([]Entry, 0, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, rel := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := c.copyFile(rel)
			if err != nil {
				c.logger.Error("copy %s failed: %v", rel, err)
				return &FileError{Path: rel, Err: err}
			}
			c.logger.Debug("copied %s -> %s (%d bytes)", entry.Source, entry.Target, entry.Bytes)
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sortEntries(entries), err
	}
	if err := ctx.Err(); err != nil {
		return sortEntries(entries), err
	}
	return sortEntries(entries), nil
}

func sortEntries(entries []Entry) []Entry {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Source < entries[j].Source
	})
	return entries
}

// collect lists the relative slash-separated paths of files to copy.
func (c *CopySpec) collect() ([]string, error) {
	var files []string
	err := afero.Walk(c.fs, c.from, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.from, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchAny(c.exclude, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to list source files").
			WithTextCode("WALK_FAILED").
			WithMetadata(map[string]any{"from": c.from})
	}
	sort.Strings(files)
	return files, nil
}

func (c *CopySpec) matches(rel string) bool {
	if len(c.include) == 0 {
		return true
	}
	return matchAny(c.include, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (c *CopySpec) copyFile(rel string) (Entry, error) {
	entry := Entry{Source: rel, Target: rel}

	src, err := c.fs.Open(filepath.Join(c.from, filepath.FromSlash(rel)))
	if err != nil {
		return entry, err
	}

	var r io.ReadCloser = src
	if c.matches(rel) {
		entry.Filtered = len(c.filters) > 0
		if c.rename != nil {
			if target := c.rename(rel); target != "" {
				entry.Target = path.Clean(target)
			}
		}
		for _, reg := range c.filters {
			f := reg.factory(r, filter.WithName(rel), filter.WithLogger(c.logger))
			if err := filter.Apply(f, reg.params); err != nil {
				f.Close()
				return entry, err
			}
			r = f
		}
	}

	var buf bytes.Buffer
	_, readErr := io.Copy(&buf, r)
	closeErr := r.Close()
	if readErr != nil {
		return entry, readErr
	}
	if closeErr != nil {
		return entry, closeErr
	}

	target := filepath.Join(c.into, filepath.FromSlash(entry.Target))
	if err := c.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return entry, err
	}
	if err := afero.WriteFile(c.fs, target, buf.Bytes(), c.mode); err != nil {
		return entry, err
	}
	entry.Bytes = buf.Len()
	return entry, nil
}

// ReplaceExtension returns a rename function swapping the file extension
// for ext, which may be given with or without the leading dot.
func ReplaceExtension(ext string) func(string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return func(rel string) string {
		return strings.TrimSuffix(rel, path.Ext(rel)) + ext
	}
}
