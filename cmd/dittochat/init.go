package main

import (
	"fmt"

	"github.com/marmos91/dittochat/pkg/config"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with all defaults",
		Long: `Write a configuration file with every setting at its default value.

The file is written to $XDG_CONFIG_HOME/dittochat/config.yaml unless
--path is given. An existing file is kept unless --force is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}

			fmt.Printf("Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	cmd.Flags().StringVar(&path, "path", "", "Write the config file to this path")

	return cmd
}
