package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/poker-ledger/pkg/money"
)

// FormatBTimeLayouts are tried in order against the date/time column.
var FormatBTimeLayouts = []string{
	"2006/01/02 03:04 PM",
	"2006/01/02 3:04 PM",
	"2006/01/02 03:04:05 PM",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

var (
	dateHeaders        = []string{"date/time", "date time", "datetime", "transaction details", "date"}
	actionHeaders      = []string{"action", "transaction type", "type"}
	tableHeaders       = []string{"table/tournament", "table / tournament", "tournament", "table", "tournament id"}
	descriptionHeaders = []string{"description", "details"}
	gameHeaders        = []string{"game"}
	signedAmounts      = []string{"amount", "net amount", "amount (usd)"}
	unsignedAmounts    = []string{"individual transaction amounts"}
	balanceHeaders     = []string{"balance", "running balance", "balance after", "accumulated balance"}
)

type formatBColumns struct {
	date        int
	action      int
	table       int
	description int
	game        int
	amount      int
	balance     int
	unsigned    bool
}

// FormatB parses the action based audit export. The amount comes from the amount
// column when the row has one, otherwise from the change in running balance since
// the previous row.
type FormatB struct{}

func (p *FormatB) Parse(t *Table) (*Result, error) {
	cols := formatBColumns{
		date:        t.Column(dateHeaders...),
		action:      t.Column(actionHeaders...),
		table:       t.Column(tableHeaders...),
		description: t.Column(descriptionHeaders...),
		game:        t.Column(gameHeaders...),
		amount:      t.Column(signedAmounts...),
		balance:     t.Column(balanceHeaders...),
	}
	if cols.amount < 0 {
		cols.amount = t.Column(unsignedAmounts...)
		cols.unsigned = cols.amount >= 0
	}
	if cols.date < 0 {
		return nil, fmt.Errorf("%w: no date/time column", sniffer.ErrUnrecognizedFormat)
	}
	if cols.amount < 0 && cols.balance < 0 {
		return nil, fmt.Errorf("%w: no amount or balance column", sniffer.ErrUnrecognizedFormat)
	}

	result := &Result{
		Rows:      make([]Row, 0, len(t.Rows)),
		Errors:    append([]RowError(nil), t.Broken...),
		TotalRows: len(t.Rows) + len(t.Broken),
	}

	var prevBalance *int64
	for i, record := range t.Rows {
		line := t.Lines[i]

		balance, hasBalance := int64(0), false
		if raw := cell(record, cols.balance); raw != "" {
			if b, err := money.ParseCents(raw); err == nil {
				balance, hasBalance = b, true
			}
		}
		prev := prevBalance
		if hasBalance {
			b := balance
			prevBalance = &b
		} else {
			prevBalance = nil
		}

		ts, ok := parseFormatBTime(cell(record, cols.date))
		if !ok {
			result.DroppedNoDate++
			continue
		}

		row, rowErr := p.processRow(record, line, cols, prev, balance, hasBalance)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		row.Date, row.Time = splitTimestamp(ts)
		result.Rows = append(result.Rows, *row)
	}

	return result, nil
}

func (p *FormatB) processRow(record []string, line int, cols formatBColumns, prev *int64, balance int64, hasBalance bool) (*Row, *RowError) {
	var amount int64
	if raw := cell(record, cols.amount); raw != "" {
		cents, err := money.ParseCents(raw)
		if err != nil {
			return nil, &RowError{Row: line, Column: "amount", Message: err.Error(), RawData: raw}
		}
		amount = cents
	} else if hasBalance && prev != nil {
		amount = balance - *prev
	} else {
		return nil, &RowError{Row: line, Column: "amount", Message: "amount missing and no previous balance to derive it from"}
	}

	desc := describe(cell(record, cols.table), cell(record, cols.description), cell(record, cols.game))
	if desc == "" {
		return nil, &RowError{Row: line, Column: "table/tournament", Message: "missing description"}
	}

	return &Row{
		Line:        line,
		Label:       cell(record, cols.action),
		Description: desc,
		AmountCents: amount,
		Unsigned:    cols.unsigned && !strings.HasPrefix(cell(record, cols.amount), "-"),
	}, nil
}

// describe joins the table or tournament identifier, free text and game so the
// identifier stays the leading token.
func describe(table, description, game string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{table, description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	joined := strings.Join(parts, " ")
	if game != "" && !strings.Contains(strings.ToLower(joined), strings.ToLower(game)) {
		if joined == "" {
			joined = game
		} else {
			joined += " " + game
		}
	}
	return cleanDescription(joined)
}

func parseFormatBTime(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range FormatBTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
		// transaction details cells may carry text after the timestamp
		if len(s) > len(layout) {
			if ts, err := time.Parse(layout, s[:len(layout)]); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
