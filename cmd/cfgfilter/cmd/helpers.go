package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/goliatone/go-cfgfilter/edits"
	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/goliatone/go-cfgfilter/format"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const stdioName = "-"

// open returns the named file, or stdin for "" and "-".
func (a *app) open(name string) (io.ReadCloser, string, error) {
	if name == "" || name == stdioName {
		return io.NopCloser(a.stdin), "stdin", nil
	}
	f, err := a.fs.Open(name)
	if err != nil {
		return nil, name, err
	}
	return f, name, nil
}

// write stores data in the named file, or prints it for "" and "-".
func (a *app) write(cmd *cobra.Command, name string, data []byte) error {
	if name == "" || name == stdioName {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(a.fs, name, data, 0o644)
}

// adapterFor picks the adapter named by flag, or the one registered for
// the extension of path.
func adapterFor(flag, path, role string) (format.Adapter, error) {
	if flag != "" {
		return format.Lookup(flag)
	}
	if path != "" && path != stdioName {
		if a, ok := format.ByExtension(filepath.Ext(path)); ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("cannot infer the %s format of %q, use --%s", role, path, role)
}

// editFlags collects --set, --delete and --resolve in the order edits run:
// sets, then deletes, then resolution.
type editFlags struct {
	sets    []string
	deletes []string
	resolve bool
}

func (e *editFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&e.sets, "set", nil, "Set a value, path=value (repeatable)")
	cmd.Flags().StringArrayVar(&e.deletes, "delete", nil, "Delete a path (repeatable)")
	cmd.Flags().BoolVar(&e.resolve, "resolve", false, "Expand ${path} and {{ expr }} values")
}

func (e *editFlags) edits() ([]edits.Edit, error) {
	var list []edits.Edit
	for _, s := range e.sets {
		edit, err := edits.ParseAssignment(s)
		if err != nil {
			return nil, err
		}
		list = append(list, edit)
	}
	for _, p := range e.deletes {
		list = append(list, edits.Edit{Op: edits.OpDelete, Path: p})
	}
	if e.resolve {
		list = append(list, edits.Edit{Op: edits.OpResolve})
	}
	return list, nil
}

func (e *editFlags) mutator() (filter.Mutator, error) {
	list, err := e.edits()
	if err != nil {
		return nil, err
	}
	return edits.Compile(list...)
}
