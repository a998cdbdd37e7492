package parser

import (
	"fmt"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/poker-ledger/pkg/money"
)

// FormatATimeLayout is the only timestamp layout the spreadsheet export uses.
const FormatATimeLayout = "15:04:05 2006-01-02"

// formatARow is one spreadsheet row, matched by normalized header name.
type formatARow struct {
	Date          string `csv:"date"`
	Fecha         string `csv:"fecha"`
	MoneyIn       string `csv:"money in"`
	MoneyOut      string `csv:"money out"`
	PaymentMethod string `csv:"payment method"`
	MetodoDePago  string `csv:"metodo de pago"`
	Category      string `csv:"category"`
	Description   string `csv:"description"`
	Descripcion   string `csv:"descripcion"`
}

// FormatA parses the Date / Money In / Money Out / Payment Method / Description
// export. The amount is Money In minus Money Out.
type FormatA struct{}

func (p *FormatA) Parse(t *Table) (*Result, error) {
	if t.Column("money in", "money out") < 0 {
		return nil, fmt.Errorf("%w: no money in or money out column", sniffer.ErrUnrecognizedFormat)
	}
	if t.Column("description", "descripcion") < 0 {
		return nil, fmt.Errorf("%w: no description column", sniffer.ErrUnrecognizedFormat)
	}

	result := &Result{
		Rows:      make([]Row, 0, len(t.Rows)),
		Errors:    append([]RowError(nil), t.Broken...),
		TotalRows: len(t.Rows) + len(t.Broken),
	}
	if len(t.Rows) == 0 {
		return result, nil
	}

	var rows []formatARow
	if err := gocsv.UnmarshalCSV(newRecordReader(t), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}

	for i, raw := range rows {
		line := t.Lines[i]

		dateStr := coalesce(raw.Date, raw.Fecha)
		ts, err := time.Parse(FormatATimeLayout, dateStr)
		if err != nil {
			result.DroppedNoDate++
			continue
		}

		row, rowErr := p.processRow(raw, line)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		row.Date, row.Time = splitTimestamp(ts)
		result.Rows = append(result.Rows, *row)
	}

	return result, nil
}

func (p *FormatA) processRow(raw formatARow, line int) (*Row, *RowError) {
	in, err := optionalCents(raw.MoneyIn)
	if err != nil {
		return nil, &RowError{Row: line, Column: "money in", Message: err.Error(), RawData: raw.MoneyIn}
	}
	out, err := optionalCents(raw.MoneyOut)
	if err != nil {
		return nil, &RowError{Row: line, Column: "money out", Message: err.Error(), RawData: raw.MoneyOut}
	}

	desc := cleanDescription(coalesce(raw.Description, raw.Descripcion))
	if desc == "" {
		return nil, &RowError{Row: line, Column: "description", Message: "missing description"}
	}

	return &Row{
		Line:          line,
		Label:         coalesce(raw.PaymentMethod, raw.MetodoDePago),
		CategoryLabel: coalesce(raw.Category),
		Description:   desc,
		AmountCents:   abs(in) - abs(out),
	}, nil
}

// optionalCents treats an empty cell as zero.
func optionalCents(s string) (int64, error) {
	if coalesce(s) == "" {
		return 0, nil
	}
	return money.ParseCents(s)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
