package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/rag"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of chunks to retrieve (0 = configured default)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	question := strings.Join(args, " ")
	result, err := system.Query(ctx, question, owner, askTopK)
	if errors.Is(err, rag.ErrInsufficientContext) {
		fmt.Println("I don't have enough information in the indexed documents to answer that.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if result.Grounded {
		fmt.Printf("\n(grounded in %d document chunk(s))\n", len(result.Chunks))
	}
	return nil
}
