// Package loader parses heterogeneous file formats into plain text
// plus source metadata so downstream chunking and embedding see one
// uniform shape regardless of the original format.
//
// Dispatch is by file extension. Parse failures surface as ErrLoad
// wrapping the original cause, with one deliberate exception: PDF
// parsing degrades to an empty result instead of failing, because PDF
// corpora are unusually failure-prone and a single corrupt upload
// should not poison a batch (see loadPDF).
package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

var (
	// ErrUnsupportedFormat indicates a file extension with no
	// registered extractor. The operation must not be retried.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrLoad indicates a parse failure in a format extractor.
	ErrLoad = errors.New("failed to load document")
)

// Result is the outcome of loading one document: extracted plain text
// plus format metadata.
type Result struct {
	Content  string
	Metadata map[string]string
}

// Loader converts files into plain text by extension dispatch.
type Loader struct{}

// New creates a Loader.
func New() *Loader {
	return &Loader{}
}

// Load reads the file at path and extracts its text content.
func (l *Loader) Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrLoad, filepath.Base(path), err)
	}
	return l.LoadBytes(data, filepath.Ext(path), filepath.Base(path))
}

// LoadBytes extracts text from an in-memory document. ext is the file
// extension including the leading dot; source names the origin for
// metadata purposes (usually the original filename).
func (l *Loader) LoadBytes(data []byte, ext, source string) (*Result, error) {
	var (
		res *Result
		err error
	)

	switch strings.ToLower(ext) {
	case ".txt":
		res = &Result{Content: string(data), Metadata: map[string]string{}}
	case ".md", ".markdown":
		res, err = loadMarkdown(data)
	case ".pdf":
		res, err = loadPDF(data)
	case ".xlsx", ".xls":
		res, err = loadExcel(data)
	case ".docx":
		res, err = loadDocx(data)
	case ".csv":
		res, err = loadCSV(data)
	case ".json":
		res, err = loadJSON(data)
	case ".xml":
		res, err = loadXML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	res.Metadata["source"] = source
	res.Metadata["file_type"] = strings.TrimPrefix(strings.ToLower(ext), ".")
	return res, nil
}

// Supported reports whether the extension has a registered extractor.
func (l *Loader) Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".md", ".markdown", ".pdf", ".xlsx", ".xls", ".docx", ".csv", ".json", ".xml":
		return true
	}
	return false
}

// loadCSV re-serializes tabular data through encoding/csv so that
// delimiter and quoting quirks are normalized away.
func loadCSV(data []byte) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing csv: %w", ErrLoad, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("%w: serializing csv: %w", ErrLoad, err)
	}
	w.Flush()

	return &Result{
		Content:  buf.String(),
		Metadata: map[string]string{"rows": strconv.Itoa(len(records))},
	}, nil
}

// loadJSON pretty-prints the document through a decode/encode round
// trip, which both validates it and gives stable formatting.
func loadJSON(data []byte) (*Result, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: parsing json: %w", ErrLoad, err)
	}

	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: serializing json: %w", ErrLoad, err)
	}

	return &Result{Content: string(pretty), Metadata: map[string]string{}}, nil
}

// loadXML parses the document into a node tree and renders it as
// pretty-printed JSON, matching the JSON loader's output shape.
func loadXML(data []byte) (*Result, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing xml: %w", ErrLoad, err)
	}

	tree := map[string]any{}
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			tree[child.Data] = xmlNodeToValue(child)
		}
	}

	pretty, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: serializing xml tree: %w", ErrLoad, err)
	}

	return &Result{Content: string(pretty), Metadata: map[string]string{}}, nil
}

// xmlNodeToValue converts an element node to a JSON-friendly value:
// text-only elements collapse to strings, repeated children become
// arrays, attributes are prefixed with "@".
func xmlNodeToValue(n *xmlquery.Node) any {
	obj := map[string]any{}
	for _, attr := range n.Attr {
		obj["@"+attr.Name.Local] = attr.Value
	}

	var text strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			text.WriteString(child.Data)
		case xmlquery.ElementNode:
			value := xmlNodeToValue(child)
			if existing, ok := obj[child.Data]; ok {
				if arr, ok := existing.([]any); ok {
					obj[child.Data] = append(arr, value)
				} else {
					obj[child.Data] = []any{existing, value}
				}
			} else {
				obj[child.Data] = value
			}
		}
	}

	trimmed := strings.TrimSpace(text.String())
	if len(obj) == 0 {
		return trimmed
	}
	if trimmed != "" {
		obj["#text"] = trimmed
	}
	return obj
}
