package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
)

// Table is an export reduced to a header row and data rows. Headers are normalized
// with sniffer.NormalizeHeader.
type Table struct {
	Headers []string
	Rows    [][]string
	Lines   []int      // source position of each row
	Broken  []RowError // records the container reader could not decode
}

// Column returns the index of the first header among names, or -1.
func (t *Table) Column(names ...string) int {
	for _, name := range names {
		for i, h := range t.Headers {
			if h == name {
				return i
			}
		}
	}
	return -1
}

// ReadTable extracts the table described by det from data.
func ReadTable(data []byte, det *sniffer.Detection) (*Table, error) {
	switch det.Container {
	case sniffer.ContainerXLSX:
		return ReadXLSX(data, det)
	case sniffer.ContainerHTML:
		return ReadHTML(data)
	default:
		return ReadDelimited(data, det)
	}
}

// ReadDelimited reads CSV-like text using the delimiter and header row found by the
// sniffer.
func ReadDelimited(data []byte, det *sniffer.Detection) (*Table, error) {
	body := sniffer.Normalize(data)
	for i := 0; i < det.SkipLines; i++ {
		idx := bytes.IndexByte(body, '\n')
		if idx < 0 {
			return nil, sniffer.ErrNoHeadersFound
		}
		body = body[idx+1:]
	}

	reader := csv.NewReader(bytes.NewReader(body))
	if det.Delimiter != 0 {
		reader.Comma = det.Delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Table{Headers: normalizeHeaders(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line + det.SkipLines
			}
			t.Broken = append(t.Broken, RowError{Row: line, Message: err.Error()})
			continue
		}
		line, _ := reader.FieldPos(0)
		line += det.SkipLines
		if blank(record) {
			continue
		}
		t.Rows = append(t.Rows, record)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = sniffer.NormalizeHeader(h)
	}
	return out
}

// recordReader feeds a Table to gocsv, which expects a CSV reader.
type recordReader struct {
	records [][]string
	pos     int
}

func newRecordReader(t *Table) *recordReader {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, t.Headers)
	for _, row := range t.Rows {
		padded := row
		if len(row) < len(t.Headers) {
			padded = make([]string, len(t.Headers))
			copy(padded, row)
		}
		records = append(records, padded)
	}
	return &recordReader{records: records}
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}
