package loader

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// loadMarkdown token-parses the document with goldmark and renders the
// AST back to plain text: formatting is dropped, block boundaries
// become blank lines.
func loadMarkdown(data []byte) (*Result, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(data))

	var out strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Block boundaries separate paragraphs in the output.
			if _, ok := n.(*ast.Document); !ok && n.Type() == ast.TypeBlock {
				out.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			out.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				out.WriteString("\n")
			}
		case *ast.AutoLink:
			out.Write(node.URL(data))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				out.Write(seg.Value(data))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking markdown ast: %w", ErrLoad, err)
	}

	content := strings.TrimSpace(out.String())
	return &Result{Content: content, Metadata: map[string]string{}}, nil
}
