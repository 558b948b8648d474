package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions [document-id]",
	Short: "Show a document's version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback [document-id] [version-id]",
	Short: "Repoint a document to an earlier version",
	Args:  cobra.ExactArgs(2),
	RunE:  runRollback,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	versions := system.Versions(args[0])
	if len(versions) == 0 {
		fmt.Printf("No versions recorded for %s.\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tTAGS\tHASH\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%s\t%.12s\t%s\n",
			v.ID, strings.Join(v.Tags, ","), v.Hash,
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := system.Rollback(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Document %s rolled back to version %s.\n", args[0], args[1])
	return nil
}
