package sniffer

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/poker-ledger/internal/domain/ledger"
)

// Container is the physical file type.
type Container string

const (
	ContainerDelimited Container = "delimited"
	ContainerXLSX      Container = "xlsx"
	ContainerHTML      Container = "html"
)

// Format is the column layout of an export.
type Format string

const (
	// FormatTabularA is the spreadsheet export with Date, Money In, Money Out,
	// Payment Method and Description columns.
	FormatTabularA Format = "tabular_a"
	// FormatTabularB is the action based audit export with a date/time or
	// transaction details column.
	FormatTabularB Format = "tabular_b"
	// FormatHTMLTable is the HTML variant of FormatTabularB.
	FormatHTMLTable Format = "html_table"
)

// DefaultRoom is the cardroom a format belongs to when the caller gives no hint.
func (f Format) DefaultRoom() string {
	if f == FormatTabularA {
		return ledger.RoomWPTGlobal
	}
	return ledger.RoomPokerStars
}

const htmlSniffLen = 100

var htmlMarkers = [][]byte{[]byte("<!doctype html"), []byte("<html"), []byte("<table")}

var zipMagic = []byte("PK\x03\x04")

// Detection is the outcome of inspecting one file. It carries everything a reader
// needs to extract the table without repeating the search.
type Detection struct {
	Container   Container
	Format      Format
	Room        string
	Delimiter   rune
	SkipLines   int
	Sheet       string
	Headers     []string
	Fingerprint string
}

// Detect inspects data and its declared filename. Detection order: an HTML marker
// in the first bytes, then the header row of the spreadsheet or delimited text.
// Nothing is parsed beyond the header row.
func Detect(data []byte, filename string) (*Detection, error) {
	return DetectWithOptions(data, filename, Options{})
}

// DetectWithOptions is Detect with a caller supplied header row or delimiter. The
// header row still has to form a known layout.
func DetectWithOptions(data []byte, filename string, opts Options) (*Detection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	switch SniffContainer(data, filename) {
	case ContainerHTML:
		return &Detection{
			Container: ContainerHTML,
			Format:    FormatHTMLTable,
			Room:      FormatHTMLTable.DefaultRoom(),
		}, nil
	case ContainerXLSX:
		return detectXLSX(data, opts)
	default:
		return detectDelimited(Normalize(data), opts)
	}
}

// SniffContainer decides the physical container from magic bytes and extension.
func SniffContainer(data []byte, filename string) Container {
	head := data
	if len(head) > htmlSniffLen {
		head = head[:htmlSniffLen]
	}
	head = bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM)))
	for _, marker := range htmlMarkers {
		if bytes.Contains(head, marker) {
			return ContainerHTML
		}
	}

	if bytes.HasPrefix(data, zipMagic) {
		return ContainerXLSX
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ContainerXLSX
	case ".html", ".htm":
		return ContainerHTML
	}
	return ContainerDelimited
}

func detectDelimited(data []byte, opts Options) (*Detection, error) {
	config, err := DetectConfig(data, opts)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrInvalidDelimiter) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	format, err := ClassifyHeaders(config.Headers)
	if err != nil {
		return nil, err
	}

	return &Detection{
		Container:   ContainerDelimited,
		Format:      format,
		Room:        format.DefaultRoom(),
		Delimiter:   config.Delimiter,
		SkipLines:   config.SkipLines,
		Headers:     config.Headers,
		Fingerprint: config.Fingerprint,
	}, nil
}

func detectXLSX(data []byte, opts Options) (*Detection, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open spreadsheet: %v", ErrUnrecognizedFormat, err)
	}
	defer f.Close()

	for _, sheet := range OrderSheets(f.GetSheetList()) {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for i, row := range rows {
			if opts.HeaderRow > 0 && i != opts.HeaderRow-1 {
				continue
			}
			if i > maxHeaderSearch && opts.HeaderRow == 0 {
				break
			}
			format, err := ClassifyHeaders(row)
			if err != nil {
				continue
			}
			headers := make([]string, len(row))
			for j, h := range row {
				headers[j] = strings.TrimSpace(h)
			}
			return &Detection{
				Container:   ContainerXLSX,
				Format:      format,
				Room:        format.DefaultRoom(),
				SkipLines:   i,
				Sheet:       sheet,
				Headers:     headers,
				Fingerprint: Fingerprint(headers),
			}, nil
		}
	}
	return nil, ErrUnrecognizedFormat
}

// OrderSheets puts sheets with transaction-like names first, keeping the workbook
// order otherwise.
func OrderSheets(sheets []string) []string {
	preferred := []string{"transactions", "transaction history", "audit", "sheet1"}
	ordered := make([]string, 0, len(sheets))
	used := make(map[string]bool)
	for _, p := range preferred {
		for _, s := range sheets {
			if strings.EqualFold(s, p) && !used[s] {
				ordered = append(ordered, s)
				used[s] = true
			}
		}
	}
	for _, s := range sheets {
		if !used[s] {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// ClassifyHeaders maps a header row to a layout. A Date column wins; otherwise a
// date/time, transaction details or action column selects the audit layout.
func ClassifyHeaders(headers []string) (Format, error) {
	var hasDate, hasAudit bool
	for _, h := range headers {
		switch NormalizeHeader(h) {
		case "date", "fecha":
			hasDate = true
		case "date/time", "date time", "datetime", "transaction details", "action":
			hasAudit = true
		}
	}
	switch {
	case hasDate:
		return FormatTabularA, nil
	case hasAudit:
		return FormatTabularB, nil
	default:
		return "", ErrUnrecognizedFormat
	}
}

// NormalizeHeader lower-cases a header and collapses inner whitespace.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalize strips a UTF-8 byte order mark and decodes non UTF-8 input as
// Windows-1252, the encoding legacy cardroom exports use.
func Normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}
