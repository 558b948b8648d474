package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/rag"
)

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	system, cleanup, err := buildSystem(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("docsage interactive mode. Type a question, /add <path> to index a file,")
	fmt.Println("/list to show documents, /exit to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil

		case strings.HasPrefix(line, "/add "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/add"))
			result, err := system.AddDocument(ctx, rag.AddRequest{Path: path, Owner: owner})
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if result.Reused {
				fmt.Printf("identical content already indexed as %s\n", result.DocumentID)
			} else {
				fmt.Printf("indexed as %s\n", result.DocumentID)
			}

		case line == "/list":
			docs, err := system.ListDocuments(ctx, owner)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			for _, doc := range docs {
				fmt.Printf("%s  %s (%d chunks)\n", doc.ID, doc.Filename, doc.ChunkCount)
			}
			if len(docs) == 0 {
				fmt.Println("no documents indexed")
			}

		default:
			result, err := system.Query(ctx, line, owner, 0)
			if errors.Is(err, rag.ErrInsufficientContext) {
				fmt.Println("I don't have enough information in the indexed documents to answer that.")
				continue
			}
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(result.Answer)
		}
	}
}
