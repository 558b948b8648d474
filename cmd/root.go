// Package cmd wires the configuration, backend and RAG system into a
// command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var owner string

var rootCmd = &cobra.Command{
	Use:   "docsage",
	Short: "docsage - question answering over your own documents",
	Long: `docsage indexes documents into a vector store and answers
questions grounded in their content. Running docsage without a
subcommand starts an interactive chat loop.`,
	RunE: runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "default", "owner scope for documents and queries")
}
