package main

import (
	"github.com/spf13/cobra"

	"github.com/GregMSThompson/gridboard/internal/config"
	// Registers the built-in widget types on the default registry.
	_ "github.com/GregMSThompson/gridboard/internal/widgets"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridboard",
		Short:         "Serve configurable dashboards of data widgets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "gridboard.yaml", "host config file")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd())
	return root
}
