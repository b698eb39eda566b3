package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/state"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		season  int
		episode int
	)

	cmd := &cobra.Command{
		Use:   "add <series>",
		Short: "Capture one episode of a series already on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			if episode < 1 {
				return errors.New("--episode is required")
			}

			all, err := ctx.store().Discover()
			if err != nil {
				return err
			}
			series, ok := findSeries(all, args[0])
			if !ok {
				return errors.Errorf("series %q not found in %s", args[0], ctx.config.Paths.WorkDir)
			}

			seasonInfo := naming.NoSeasons()
			if season > 0 {
				seasonInfo = naming.Season(season)
			}

			job, err := orchestrator.ResolveJob(runCtx, ctx.siteCatalog(), ctx.store(), series, seasonInfo)
			if err != nil {
				return err
			}
			ep, err := orchestrator.SelectEpisode(job.Episodes, episode)
			if err != nil {
				return err
			}
			job.Episodes = []site.EpisodeRef{ep}

			if err := ctx.runJob(runCtx, cmd.OutOrStdout(), ctx.orchestrator(), job); err != nil {
				return err
			}
			return ctx.publishGit(runCtx, "Add "+string(naming.NewCode(seasonInfo, episode))+" of "+series.Name)
		},
	}

	cmd.Flags().IntVar(&season, "season", 0, "Season number (0 for a series without seasons)")
	cmd.Flags().IntVar(&episode, "episode", 0, "Episode number")
	return cmd
}

// findSeries matches a folder name or display name.
func findSeries(all []state.Series, name string) (state.Series, bool) {
	sanitized := naming.Sanitize(name)
	for _, s := range all {
		if s.Name == name || s.Title == name || s.Name == sanitized {
			return s, true
		}
	}
	return state.Series{}, false
}
