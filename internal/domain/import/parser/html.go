package parser

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/FACorreiaa/poker-ledger/internal/domain/import/sniffer"
)

// ReadHTML extracts the first table in an HTML export whose header row is a
// recognized layout. Header cells may be th or td.
func ReadHTML(data []byte) (*Table, error) {
	doc, err := html.Parse(bytes.NewReader(sniffer.Normalize(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, table := range findAll(doc, atom.Table) {
		rows := tableRows(table)
		for i, row := range rows {
			if _, err := sniffer.ClassifyHeaders(row); err != nil {
				continue
			}
			t := &Table{Headers: normalizeHeaders(row)}
			for j := i + 1; j < len(rows); j++ {
				if blank(rows[j]) {
					continue
				}
				t.Rows = append(t.Rows, rows[j])
				t.Lines = append(t.Lines, j+1)
			}
			return t, nil
		}
	}
	return nil, sniffer.ErrUnrecognizedFormat
}

// tableRows returns the text of every row of table, skipping nested tables.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
						cells = append(cells, textContent(td))
					}
				}
				rows = append(rows, cells)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
