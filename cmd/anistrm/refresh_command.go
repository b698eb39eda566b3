package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/util"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Capture new episodes of every series already on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			series, err := ctx.store().Discover()
			if err != nil {
				return err
			}
			if len(series) == 0 {
				util.Warn("No existing series found", "work_dir", ctx.config.Paths.WorkDir)
				return nil
			}

			catalog := ctx.siteCatalog()
			orch := ctx.orchestrator()
			failed := 0
			for _, s := range series {
				if only != "" && only != s.Name && only != s.Title {
					continue
				}
				for _, season := range s.Targets() {
					util.Info("Refreshing", "series", s.Title, "season", season)
					job, err := orchestrator.ResolveJob(runCtx, catalog, ctx.store(), s, season)
					if err == nil {
						err = ctx.runJob(runCtx, cmd.OutOrStdout(), orch, job)
					}
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return err
						}
						failed++
						util.Errorf("Refresh of %s season %v failed: %v", s.Name, season, err)
					}
				}
			}

			if err := ctx.publishGit(runCtx, "Refresh all series"); err != nil {
				return err
			}
			if failed > 0 {
				return errors.Errorf("%d series/season refreshes failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "series", "", "Refresh only this series (folder or display name)")
	return cmd
}
