package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete an indexed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := system.ListDocuments(ctx, owner)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tTYPE\tCHUNKS\tSIZE\tUPLOADED")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			doc.ID, doc.Filename, doc.FileType, doc.ChunkCount, doc.FileSize,
			doc.UploadedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	deleted, err := system.DeleteDocument(ctx, args[0])
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("Document %s was not found (already deleted?).\n", args[0])
		return nil
	}
	fmt.Printf("Deleted document %s.\n", args[0])
	return nil
}
