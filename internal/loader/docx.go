package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// loadDocx extracts raw text from a Word document by reading the text
// runs of word/document.xml inside the OOXML zip container.
func loadDocx(data []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: opening docx container: %w", ErrLoad, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening document.xml: %w", ErrLoad, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading document.xml: %w", ErrLoad, err)
		}

		text, err := parseDocumentXML(content)
		if err != nil {
			return nil, err
		}
		return &Result{Content: text, Metadata: map[string]string{}}, nil
	}

	return nil, fmt.Errorf("%w: docx container has no word/document.xml", ErrLoad)
}

// parseDocumentXML collects <w:t> text runs, inserting paragraph
// breaks at each closing <w:p>.
func parseDocumentXML(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var out strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parsing document.xml: %w", ErrLoad, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return strings.TrimSpace(out.String()), nil
}
