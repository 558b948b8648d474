package loader

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text from a PDF.
//
// Unlike the other extractors, a parse failure here degrades to an
// empty result rather than returning ErrLoad: real-world PDF corpora
// contain enough malformed files that hard-failing would block whole
// upload batches. Callers see zero chunks for such a document, same as
// an empty file. This is a deliberate, documented soft-failure path.
func loadPDF(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &Result{Content: "", Metadata: map[string]string{}}, nil
	}

	var text strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}

		text.WriteString(pageText)
		text.WriteString("\n")
	}

	return &Result{
		Content:  text.String(),
		Metadata: map[string]string{"pages": strconv.Itoa(pages)},
	}, nil
}
