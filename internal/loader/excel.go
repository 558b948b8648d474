package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// loadExcel renders every sheet of a workbook as CSV, each prefixed
// with a sheet-name banner so chunk boundaries keep their provenance.
func loadExcel(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %w", ErrLoad, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var buf bytes.Buffer
	sheets := f.GetSheetList()

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: reading sheet %q: %w", ErrLoad, sheet, err)
		}

		fmt.Fprintf(&buf, "=== Sheet: %s ===\n", sheet)

		w := csv.NewWriter(&buf)
		if err := w.WriteAll(rows); err != nil {
			return nil, fmt.Errorf("%w: serializing sheet %q: %w", ErrLoad, sheet, err)
		}
		w.Flush()
		buf.WriteString("\n")
	}

	return &Result{
		Content:  buf.String(),
		Metadata: map[string]string{"sheets": strconv.Itoa(len(sheets))},
	}, nil
}
