package format

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatHOCON Format = "hocon"
	FormatXML   Format = "xml"
	FormatHCL   Format = "hcl"
)

// Default adapters, one per format. They are immutable and safe to share.
var (
	JSON  Adapter = jsonAdapter{opts: defaultOptions()}
	YAML  Adapter = yamlAdapter{opts: defaultOptions()}
	TOML  Adapter = tomlAdapter{opts: defaultOptions()}
	HOCON Adapter = hoconAdapter{opts: defaultOptions()}
	XML   Adapter = xmlAdapter{opts: defaultOptions()}
	HCL   Adapter = hclAdapter{opts: defaultOptions()}
)

var registry = map[Format]Adapter{
	FormatJSON:  JSON,
	FormatYAML:  YAML,
	FormatTOML:  TOML,
	FormatHOCON: HOCON,
	FormatXML:   XML,
	FormatHCL:   HCL,
}

var extensions = map[Format][]string{
	FormatJSON:  {".json"},
	FormatYAML:  {".yaml", ".yml"},
	FormatTOML:  {".toml"},
	FormatHOCON: {".conf", ".hocon"},
	FormatXML:   {".xml"},
	FormatHCL:   {".hcl"},
}

// aliases accepted by ParseFormat on top of the canonical names.
var aliases = map[string]Format{
	"yml":  FormatYAML,
	"gson": FormatJSON,
	"conf": FormatHOCON,
}

func (f Format) String() string {
	return string(f)
}

func (f Format) Valid() error {
	if _, ok := registry[f]; ok {
		return nil
	}
	return errors.New("invalid config format", errors.CategoryValidation).
		WithTextCode("INVALID_FORMAT").
		WithMetadata(map[string]any{
			"format":        string(f),
			"valid_formats": Names(),
		})
}

// Extensions returns the file extensions, dot included, the format is known by.
// The first entry is the one used when renaming converted files.
func (f Format) Extensions() []string {
	return append([]string(nil), extensions[f]...)
}

// Adapter returns the default adapter for f. It panics on unknown formats,
// use Lookup when the name comes from user input.
func (f Format) Adapter() Adapter {
	a, ok := registry[f]
	if !ok {
		panic(fmt.Errorf("invalid config format: %s", f))
	}
	return a
}

// ParseFormat resolves a canonical name or alias, case insensitive.
func ParseFormat(name string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if f, ok := aliases[key]; ok {
		return f, nil
	}
	f := Format(key)
	if err := f.Valid(); err != nil {
		return "", err
	}
	return f, nil
}

// Lookup returns the default adapter for a format name or alias.
func Lookup(name string) (Adapter, error) {
	f, err := ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return registry[f], nil
}

// ByExtension returns the adapter registered for ext; the leading dot is optional.
func ByExtension(ext string) (Adapter, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for f, exts := range extensions {
		for _, e := range exts {
			if e == ext {
				return registry[f], true
			}
		}
	}
	return nil, false
}

// Infer picks a format from the extension of path, falling back to the
// optional default and then to JSON.
func Infer(path string, defaultFormat ...Format) Format {
	if a, ok := ByExtension(filepath.Ext(path)); ok {
		return a.Format()
	}
	if len(defaultFormat) > 0 {
		return defaultFormat[0]
	}
	return FormatJSON
}

// All returns the default adapters sorted by format name.
func All() []Adapter {
	out := make([]Adapter, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[Format(name)])
	}
	return out
}

// Names returns the sorted canonical format names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for f := range registry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
