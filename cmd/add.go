package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/rag"
)

var addCmd = &cobra.Command{
	Use:   "add [file...]",
	Short: "Index one or more documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, path := range args {
		result, err := system.AddDocument(ctx, rag.AddRequest{
			Path:  path,
			Owner: owner,
		})
		if err != nil {
			return fmt.Errorf("adding %s: %w", path, err)
		}
		if result.Reused {
			fmt.Printf("%s: identical content already indexed as %s\n", path, result.DocumentID)
			continue
		}
		fmt.Printf("%s: indexed as %s (version %s)\n", path, result.DocumentID, result.VersionID)
	}
	return nil
}
