package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
)

// ReadXLSX reads the sheet and header row the sniffer selected. When the detection
// names no sheet the transaction-like sheets are tried first.
func ReadXLSX(data []byte, det *sniffer.Detection) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := det.Sheet
	if sheetName == "" {
		sheets := sniffer.OrderSheets(f.GetSheetList())
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no suitable sheet found")
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if det.SkipLines >= len(rows) {
		return nil, sniffer.ErrNoHeadersFound
	}

	t := &Table{Headers: normalizeHeaders(rows[det.SkipLines])}
	for i := det.SkipLines + 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		t.Rows = append(t.Rows, rows[i])
		t.Lines = append(t.Lines, i+1)
	}
	return t, nil
}
