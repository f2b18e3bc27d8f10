package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmunix/pdbmovie/internal/config"
)

func newInitCmd(g *globals) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default tool config",
		Long: `Write the default configuration to path, or to
$XDG_CONFIG_HOME/pdbmovie/config.toml when no path is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return configError(fmt.Errorf("%s already exists, use --force to overwrite", path))
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(g.stdout, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}
