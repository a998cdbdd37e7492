package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
)

// generateFormatAData creates a spreadsheet export with the specified row count
func generateFormatAData(rows int) []byte {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write([]string{"Date", "Money In", "Money Out", "Payment Method", "Description"})

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		ts := base.Add(-time.Duration(i) * time.Minute).Format(FormatATimeLayout)
		desc := fmt.Sprintf("$%d NLH Turbo #%d", 5+i%50, i%100)
		if i%2 == 0 {
			writer.Write([]string{ts, "0", fmt.Sprintf("%d.%02d", i%200, i%100), "Buy In", desc})
		} else {
			writer.Write([]string{ts, fmt.Sprintf("%d.00", i%500), "0", "Winnings", desc})
		}
	}

	writer.Flush()
	return buf.Bytes()
}

func BenchmarkFormatA(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		data := generateFormatAData(size)

		b.Run(fmt.Sprintf("%d_rows", size), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				det, err := sniffer.Detect(data, "export.csv")
				if err != nil {
					b.Fatal(err)
				}
				table, err := ReadTable(data, det)
				if err != nil {
					b.Fatal(err)
				}
				result, err := (&FormatA{}).Parse(table)
				if err != nil {
					b.Fatal(err)
				}
				if len(result.Rows) != size {
					b.Fatalf("expected %d rows, got %d", size, len(result.Rows))
				}
			}
		})
	}
}
