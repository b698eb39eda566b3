package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/util"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		pick    int
		name    string
		season  int
		episode int
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "download [query...]",
		Short: "Search a series and capture its episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			out := cmd.OutOrStdout()

			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				var err error
				if query, err = util.PromptText("Search anime", 2); err != nil {
					return err
				}
			}

			catalog := ctx.siteCatalog()
			var results []site.SearchResult
			err := withSpinner("Searching "+query+"...", func() error {
				var err error
				results, err = catalog.Search(runCtx, query)
				return err
			})
			if err != nil {
				return err
			}

			chosen, err := pickResult(results, pick)
			if err != nil {
				return err
			}
			util.Info("Selected series", "title", chosen.Title, "url", chosen.URL)

			title := chosen.Title
			if name != "" {
				title = name
			} else if !yes {
				renamed, err := util.PromptText("New name (enter keeps \""+title+"\")", 0)
				if err != nil {
					return err
				}
				if renamed != "" {
					title = renamed
				}
			}

			var episodes []site.EpisodeRef
			err = withSpinner("Listing episodes...", func() error {
				var err error
				episodes, err = catalog.Episodes(runCtx, chosen.URL)
				return err
			})
			if err != nil {
				return err
			}

			seasonInfo, err := resolveSeason(season, yes)
			if err != nil {
				return err
			}

			if episode > 0 {
				ep, err := orchestrator.SelectEpisode(episodes, episode)
				if err != nil {
					return err
				}
				episodes = []site.EpisodeRef{ep}
			}

			job := orchestrator.SeriesJob{
				Title:      title,
				Season:     seasonInfo,
				LocatorURL: chosen.URL,
				Episodes:   episodes,
			}
			if err := ctx.runJob(runCtx, out, ctx.orchestrator(), job); err != nil {
				return err
			}
			return ctx.publishGit(runCtx, "Add "+naming.Sanitize(title)+" manifests")
		},
	}

	cmd.Flags().IntVar(&pick, "pick", 0, "Pick the n-th search result instead of asking")
	cmd.Flags().StringVar(&name, "name", "", "Store the series under this name")
	cmd.Flags().IntVar(&season, "season", -1, "Season number (0 for a series without seasons)")
	cmd.Flags().IntVar(&episode, "episode", 0, "Capture only this episode number")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask; keep the site title and no seasons unless flags say otherwise")
	return cmd
}

// resolveSeason turns --season into a SeasonInfo, asking when unset.
func resolveSeason(season int, yes bool) (naming.SeasonInfo, error) {
	switch {
	case season < -1:
		return naming.SeasonInfo{}, errors.Errorf("invalid season %d", season)
	case season > 0:
		return naming.Season(season), nil
	case season == 0 || yes:
		return naming.NoSeasons(), nil
	}

	useSeasons, err := util.Confirm("Does this series use seasons?", "Episodes are then named S01E01 and stored under Season<N>.")
	if err != nil {
		return naming.SeasonInfo{}, err
	}
	if !useSeasons {
		return naming.NoSeasons(), nil
	}
	raw, err := util.PromptText("Season number", 1)
	if err != nil {
		return naming.SeasonInfo{}, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return naming.SeasonInfo{}, errors.Errorf("season must be a positive number, got %q", raw)
	}
	return naming.Season(n), nil
}
