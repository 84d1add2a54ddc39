package cmd

import (
	"fmt"
	"time"

	"github.com/goliatone/go-cfgfilter/config"
	"github.com/goliatone/go-cfgfilter/logger"
	"github.com/goliatone/go-cfgfilter/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		manifest    string
		watch       bool
		debounce    time.Duration
		loadTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the copy tasks of a manifest",
		Long: `Run loads a manifest and copies every task's tree through its filters.

The manifest may be written in any supported format. CFGFILTER_ environment
variables override it (CFGFILTER_WORKERS=4), and so do flags. With --watch
the tasks run again whenever their source trees change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			m, err := config.LoadManifest(ctx, config.ManifestSource{
				Path:    manifest,
				Environ: a.environ,
				Flags:   cmd.Flags(),
			}, config.WithTimeout[*config.Manifest](loadTimeout))
			if err != nil {
				return err
			}

			log := a.logger(cmd, logger.ParseLevel(m.LogLevel))
			opts := []pipeline.Option{pipeline.WithFs(a.fs), pipeline.WithLogger(log)}

			if !watch {
				results, err := m.Run(ctx, opts...)
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d file(s)\n", r.Task, len(r.Entries))
				}
				return err
			}

			if m.Workers > 0 {
				opts = append(opts, pipeline.WithWorkers(m.Workers))
			}
			g, gctx := errgroup.WithContext(ctx)
			for i, task := range m.Tasks {
				spec, err := task.CopySpec(opts...)
				if err != nil {
					return err
				}
				label := task.Label(i)
				g.Go(func() error {
					return spec.Watch(gctx, debounce, func(entries []pipeline.Entry, err error) {
						if err != nil {
							log.Error("%s: %v", label, err)
							return
						}
						log.Info("%s: %d file(s)", label, len(entries))
					})
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&manifest, "manifest", "m", config.DefaultConfigFilepath, "Manifest file")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run tasks when source files change")
	cmd.Flags().DurationVar(&debounce, "debounce", pipeline.DefaultDebounce, "Quiet period before a watched re-run")
	cmd.Flags().DurationVar(&loadTimeout, "load-timeout", config.DefaultLoadTimeout, "Time allowed to load the manifest")
	cmd.Flags().Int("workers", 0, "Files copied concurrently (overrides the manifest)")

	return cmd
}
