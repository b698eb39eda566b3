package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/output"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List series on disk with per-branch episode counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := ctx.store()
			series, err := store.Discover()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(series) == 0 {
				_, _ = fmt.Fprintln(out, "No series in", ctx.config.Paths.WorkDir)
				return nil
			}

			var rows [][]string
			for _, s := range series {
				for _, season := range s.Targets() {
					sub, err := store.ExistingEpisodes(output.BranchSub, s.Name, season)
					if err != nil {
						return err
					}
					dub, err := store.ExistingEpisodes(output.BranchDub, s.Name, season)
					if err != nil {
						return err
					}
					_, hasLocator, err := store.Locator(s.Name, season)
					if err != nil {
						return err
					}
					seasonLabel := "-"
					if season.UsesSeasons {
						seasonLabel = season.Dir()
					}
					rows = append(rows, []string{
						s.Title,
						seasonLabel,
						strconv.Itoa(len(sub)),
						strconv.Itoa(len(dub)),
						yesNo(hasLocator),
					})
				}
			}
			_, _ = fmt.Fprintln(out, renderTable([]string{"Series", "Season", "Sub", "Dub", "Locator"}, rows, 2, 3))
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
