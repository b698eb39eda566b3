package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/anistrm/internal/config"
	"github.com/alvarorichard/anistrm/internal/util"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
			} else {
				target, err = config.ExpandPath(target)
			}
			if err != nil {
				return errors.Wrap(err, "resolve config path")
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), util.Success("Wrote "+target))
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the sample (default ~/.config/anistrm/config.toml)")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load and validate the configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			_, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}
			if !exists {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No config file at "+resolved+", defaults are valid")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), util.Success(resolved+" is valid"))
			return nil
		},
	}
}
