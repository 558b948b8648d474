package loader

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadBytesText(t *testing.T) {
	l := New()

	res, err := l.LoadBytes([]byte("hello world"), ".txt", "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "hello world", res.Content)
	assert.Equal(t, "notes.txt", res.Metadata["source"])
	assert.Equal(t, "txt", res.Metadata["file_type"])
}

func TestLoadBytesUnsupported(t *testing.T) {
	l := New()

	_, err := l.LoadBytes([]byte("x"), ".exe", "a.exe")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Contains(t, err.Error(), ".exe")
}

func TestLoadBytesMarkdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and a [link](https://example.com).\n\n- item one\n- item two\n"

	l := New()
	res, err := l.LoadBytes([]byte(src), ".md", "readme.md")
	require.NoError(t, err)

	assert.Contains(t, res.Content, "Title")
	assert.Contains(t, res.Content, "Some emphasis and a link.")
	assert.Contains(t, res.Content, "item one")
	assert.NotContains(t, res.Content, "#")
	assert.NotContains(t, res.Content, "*")
	assert.NotContains(t, res.Content, "](")
}

func TestLoadBytesCSV(t *testing.T) {
	src := "name,age\n\"Smith, Jane\",40\n"

	l := New()
	res, err := l.LoadBytes([]byte(src), ".csv", "people.csv")
	require.NoError(t, err)

	assert.Contains(t, res.Content, "name,age")
	assert.Contains(t, res.Content, `"Smith, Jane",40`)
	assert.Equal(t, "2", res.Metadata["rows"])
}

func TestLoadBytesCSVInvalid(t *testing.T) {
	l := New()

	_, err := l.LoadBytes([]byte("a,b\n\"unterminated"), ".csv", "bad.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
}

func TestLoadBytesJSON(t *testing.T) {
	l := New()

	res, err := l.LoadBytes([]byte(`{"b":1,"a":[1,2]}`), ".json", "data.json")
	require.NoError(t, err)

	// Pretty-printed with stable two-space indentation.
	assert.Contains(t, res.Content, "\"a\": [")
	assert.Contains(t, res.Content, "  1,")
}

func TestLoadBytesJSONInvalid(t *testing.T) {
	l := New()

	_, err := l.LoadBytes([]byte("{not json"), ".json", "bad.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
}

func TestLoadBytesXML(t *testing.T) {
	src := `<config env="dev"><host>localhost</host><port>5432</port><tag>a</tag><tag>b</tag></config>`

	l := New()
	res, err := l.LoadBytes([]byte(src), ".xml", "config.xml")
	require.NoError(t, err)

	assert.Contains(t, res.Content, `"@env": "dev"`)
	assert.Contains(t, res.Content, `"host": "localhost"`)
	assert.Contains(t, res.Content, `"port": "5432"`)
	// Repeated elements collapse into an array.
	assert.Contains(t, res.Content, `"tag": [`)
}

func TestLoadBytesExcel(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "qty"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "widget"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 3))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	l := New()
	res, err := l.LoadBytes(buf.Bytes(), ".xlsx", "inventory.xlsx")
	require.NoError(t, err)

	assert.Contains(t, res.Content, "=== Sheet: Sheet1 ===")
	assert.Contains(t, res.Content, "name,qty")
	assert.Contains(t, res.Content, "widget,3")
	assert.Equal(t, "1", res.Metadata["sheets"])
}

func TestLoadBytesDocx(t *testing.T) {
	const documentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	l := New()
	res, err := l.LoadBytes(buf.Bytes(), ".docx", "report.docx")
	require.NoError(t, err)

	assert.Contains(t, res.Content, "First paragraph.")
	assert.Contains(t, res.Content, "Second paragraph.")
	lines := strings.Split(res.Content, "\n")
	assert.Len(t, lines, 2)
}

func TestLoadBytesDocxInvalid(t *testing.T) {
	l := New()

	_, err := l.LoadBytes([]byte("not a zip"), ".docx", "bad.docx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
}

// Corrupt PDFs degrade to an empty result instead of failing; see the
// loadPDF doc comment.
func TestLoadBytesPDFCorruptDegrades(t *testing.T) {
	l := New()

	res, err := l.LoadBytes([]byte("%PDF-1.4 garbage"), ".pdf", "broken.pdf")
	require.NoError(t, err)
	assert.Empty(t, res.Content)
}

func TestSupported(t *testing.T) {
	l := New()

	assert.True(t, l.Supported(".PDF"))
	assert.True(t, l.Supported(".md"))
	assert.False(t, l.Supported(".exe"))
	assert.False(t, l.Supported(""))
}
