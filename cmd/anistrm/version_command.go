package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/updater"
	"github.com/alvarorichard/anistrm/internal/util"
	"github.com/alvarorichard/anistrm/internal/version"
)

func newVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, version.String())
			if !check {
				return nil
			}
			release, newer, err := updater.Checker{}.Check(cmd.Context())
			if err != nil {
				return err
			}
			if newer {
				_, _ = fmt.Fprintf(out, "New version available: %s (current: v%s) %s\n", release.TagName, version.Version, release.HTMLURL)
			} else {
				_, _ = fmt.Fprintln(out, util.Success("Up to date"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
