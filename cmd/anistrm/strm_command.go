package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/output"
	"github.com/alvarorichard/anistrm/internal/util"
)

func newStrmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "strm",
		Short: "Rebuild every .strm pointer file from the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.config.Remote.BaseURL == "" {
				return errors.New("remote.base_url is not configured")
			}
			artifacts, err := ctx.layout().PublishAll()
			if err != nil {
				return err
			}
			pointers, subtitles := 0, 0
			for _, a := range artifacts {
				switch a.Kind {
				case output.KindPointer:
					pointers++
				case output.KindSubtitle:
					subtitles++
				}
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), util.Success(fmt.Sprintf("%d pointer files, %d subtitles published to %s", pointers, subtitles, ctx.config.Paths.MediaDir)))
			return nil
		},
	}
}
