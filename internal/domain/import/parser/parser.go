// Package parser turns an exported transaction table into typed rows. Reading the
// container (delimited text, XLSX, HTML) is separate from interpreting the columns,
// which is done by one RowParser per export layout.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
)

// Row is the typed intermediate record one source row becomes.
type Row struct {
	Line          int        // 1-based position in the source for error reporting
	Date          time.Time  // calendar date at UTC midnight
	Time          *time.Time // time of day on 0000-01-01 UTC, nil when absent
	Label         string     // payment method or action
	CategoryLabel string     // source category column, usually empty
	Description   string
	AmountCents   int64
	Unsigned      bool // amount carries no sign; the movement type decides it
}

// RowError represents a parsing error for a specific row
type RowError struct {
	Row     int
	Column  string
	Message string
	RawData string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// Result contains the outcome of parsing a table. Every data row ends up in exactly
// one of Rows, Errors or the DroppedNoDate count.
type Result struct {
	Rows          []Row
	Errors        []RowError
	TotalRows     int
	DroppedNoDate int
}

// RowParser interprets the columns of one export layout.
type RowParser interface {
	Parse(t *Table) (*Result, error)
}

// New returns the row parser for a detected format.
func New(format sniffer.Format) (RowParser, error) {
	switch format {
	case sniffer.FormatTabularA:
		return &FormatA{}, nil
	case sniffer.FormatTabularB, sniffer.FormatHTMLTable:
		return &FormatB{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", sniffer.ErrUnrecognizedFormat, format)
	}
}

// splitTimestamp separates a parsed timestamp into the calendar date and the time of
// day, both in UTC.
func splitTimestamp(ts time.Time) (time.Time, *time.Time) {
	date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	tod := time.Date(0, time.January, 1, ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC)
	return date, &tod
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// cleanDescription trims and collapses inner whitespace.
func cleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
