// Package cmdutil holds output helpers shared by the CLI commands.
package cmdutil

import (
	"fmt"

	"github.com/InVisionApp/tabular"
)

// ColumnHeader describes a short and long name for a column.
type ColumnHeader struct {
	ShortName, FullName string
}

// columnWidth is the width of the widest cell in column colIdx, header
// included.
func columnWidth(header ColumnHeader, rows [][]string, colIdx int) int {
	width := len(header.FullName)
	for _, row := range rows {
		if l := len(row[colIdx]); l > width {
			width = l
		}
	}
	return width
}

// FormatTable formats headers and rows with enough padding to align the
// columns. Every row must have one cell per header.
func FormatTable(headers []ColumnHeader, rows [][]string) string {
	tab := tabular.New()
	for i, column := range headers {
		// the last column is not padded
		var width int
		if i < len(headers)-1 {
			width = columnWidth(column, rows, i) + 2
		}
		tab.Col(column.ShortName, column.FullName, width)
	}

	table := tab.Parse("*")
	out := fmt.Sprintln(table.Header)

	values := make([]interface{}, len(headers))
	for _, row := range rows {
		if len(values) != len(row) {
			panic("all rows must be the same length")
		}
		for i, item := range row {
			values[i] = item
		}
		out += fmt.Sprintf(table.Format, values...)
	}
	return out
}
