package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		series  string
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded capture outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := ctx.openHistory()
			if h == nil {
				return errors.New("capture history unavailable")
			}
			out := cmd.OutOrStdout()

			if summary {
				sums, err := h.Summaries(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(sums))
				for _, s := range sums {
					rows = append(rows, []string{
						s.Series,
						dash(s.Season),
						strconv.Itoa(s.Captured),
						strconv.Itoa(s.Failed),
						s.LastRun.Format("2006-01-02 15:04"),
					})
				}
				_, _ = fmt.Fprintln(out, renderTable([]string{"Series", "Season", "OK", "Failed", "Last run"}, rows, 2, 3))
				return nil
			}

			entries, err := h.Recent(cmd.Context(), series, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.RecordedAt.Format("2006-01-02 15:04:05"),
					e.Series,
					e.Code,
					e.Branch,
					string(e.Status),
					e.Error,
				})
			}
			_, _ = fmt.Fprintln(out, renderTable([]string{"When", "Series", "Episode", "Branch", "Status", "Error"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&series, "series", "", "Only this series (folder name)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries")
	cmd.Flags().BoolVar(&summary, "summary", false, "Aggregate the latest outcome per series")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
