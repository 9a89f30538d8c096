// Package cmd provides the CLI commands for ragengine.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/katanaquant/ragengine/pkg/version"
)

var configPath string

// NewRootCmd builds the root command and attaches every subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ragengine",
		Short:   "Local-first retrieval engine over a knowledge base directory",
		Long:    `ragengine watches a directory, chunks and embeds its files, and answers hybrid search queries over the result, entirely on one machine.`,
		Version: version.Version,
	}
	root.SetVersionTemplate("ragengine version {{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults layered underneath)")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
