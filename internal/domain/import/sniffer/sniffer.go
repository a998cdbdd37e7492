// Package sniffer inspects raw export files: container type, delimiter, header row,
// header fingerprint and which cardroom layout the columns belong to.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Header names seen in cardroom transaction exports (English and Spanish), in
// NormalizeHeader form.
var headerNames = map[string]bool{
	"date": true, "date/time": true, "money in": true, "money out": true, "payment method": true,
	"description": true, "action": true, "table/tournament": true, "table": true, "tournament": true,
	"game": true, "amount": true, "balance": true, "transaction details": true,
	"fecha": true, "descripcion": true, "descripción": true, "importe": true, "saldo": true,
	"metodo de pago": true, "método de pago": true,
}

// candidateDelimiters in preference order when two give the same field count.
var candidateDelimiters = []rune{';', '\t', ',', '|'}

// maxHeaderSearch bounds how many leading metadata lines are skipped looking for headers.
const maxHeaderSearch = 20

// FileConfig holds the detected configuration for a delimited text export.
type FileConfig struct {
	Delimiter   rune     // The field delimiter (';', ',', '\t', '|')
	SkipLines   int      // Number of lines before the header row
	Headers     []string // Detected header names
	Fingerprint string   // SHA256 hash of normalized headers
}

// Options overrides parts of detection. The zero value detects everything.
type Options struct {
	// HeaderRow is the 1-based line (or sheet row) holding the headers. Zero
	// searches the first lines for it.
	HeaderRow int
	// Delimiter forces the field separator of delimited text. Zero detects it.
	Delimiter rune
}

func (o Options) validate() error {
	if o.HeaderRow < 0 {
		return ErrNoHeadersFound
	}
	if o.Delimiter != 0 && !validDelimiter(o.Delimiter) {
		return ErrInvalidDelimiter
	}
	return nil
}

var (
	ErrEmptyFile          = errors.New("file is empty")
	ErrNoHeadersFound     = errors.New("could not find data headers")
	ErrInvalidDelimiter   = errors.New("invalid delimiter")
	ErrUnrecognizedFormat = errors.New("unrecognized export format")
)

// ParseDelimiter reads a delimiter given by name ("tab", "comma", "semicolon",
// "pipe") or as a single character. An empty string means auto-detect.
func ParseDelimiter(s string) (rune, error) {
	if s == "\t" {
		return '\t', nil
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || !validDelimiter(r) {
		return 0, ErrInvalidDelimiter
	}
	return r, nil
}

func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError && utf8.ValidRune(r) &&
		!unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// DetectConfig finds the delimiter and header row of a delimited export.
func DetectConfig(data []byte, opts Options) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")

	var row *headerRow
	if opts.HeaderRow > 0 {
		idx := opts.HeaderRow - 1
		if idx >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		if row = splitLine(idx, lines[idx], opts.Delimiter); row == nil {
			return nil, ErrInvalidDelimiter
		}
	} else {
		var err error
		if row, err = findHeaderRow(lines, opts.Delimiter); err != nil {
			return nil, err
		}
	}

	return &FileConfig{
		Delimiter:   row.delimiter,
		SkipLines:   row.index,
		Headers:     row.fields,
		Fingerprint: Fingerprint(row.fields),
	}, nil
}

// headerRow is one line split into fields as a header candidate.
type headerRow struct {
	index     int
	delimiter rune
	fields    []string
	known     int // fields that are known header names
}

func (r *headerRow) outranks(other *headerRow) bool {
	if r.known != other.known {
		return r.known > other.known
	}
	return len(r.fields) > len(other.fields)
}

// findHeaderRow returns the first line that forms a known layout. When none does it
// falls back to the line with the most known header names, then the most fields.
func findHeaderRow(lines []string, delimiter rune) (*headerRow, error) {
	var best *headerRow
	for i, line := range lines {
		if i > maxHeaderSearch {
			break
		}
		row := splitLine(i, line, delimiter)
		if row == nil {
			continue
		}
		if _, err := ClassifyHeaders(row.fields); err == nil {
			return row, nil
		}
		if best == nil || row.outranks(best) {
			best = row
		}
	}
	if best == nil {
		return nil, ErrNoHeadersFound
	}
	return best, nil
}

// splitLine parses line as a CSV record with the given delimiter, or with the
// candidate delimiter yielding the most fields. Quoted separators do not count.
// It returns nil when no delimiter splits the line into at least two fields.
func splitLine(index int, line string, delimiter rune) *headerRow {
	line = cleanLine(line, index == 0)
	if line == "" {
		return nil
	}

	delimiters := candidateDelimiters
	if delimiter != 0 {
		delimiters = []rune{delimiter}
	}

	var best *headerRow
	for _, d := range delimiters {
		fields, err := parseLine(line, d)
		if err != nil || len(fields) < 2 {
			continue
		}
		if best == nil || len(fields) > len(best.fields) {
			best = &headerRow{index: index, delimiter: d, fields: fields}
		}
	}
	if best == nil {
		return nil
	}
	for _, f := range best.fields {
		if headerNames[NormalizeHeader(f)] {
			best.known++
		}
	}
	return best
}

func parseLine(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	fields, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields, nil
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

// Fingerprint hashes the normalized header names. Exports of the same layout share
// a fingerprint regardless of case or punctuation.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
