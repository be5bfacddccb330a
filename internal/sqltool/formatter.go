package sqltool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// formatNarrative renders a short prose summary of a result set: a row
// count and, for a single-row single-column result (the common "what is
// X's revenue" shape), the value inline.
func formatNarrative(question string, result QueryResult) string {
	if len(result.Rows) == 0 {
		return "No data found for that question."
	}
	if len(result.Rows) == 1 && len(result.Columns) == 1 {
		col := result.Columns[0]
		return fmt.Sprintf("%s: %s", col, formatCell(result.Rows[0][col]))
	}
	return fmt.Sprintf("Found %d matching row(s).", len(result.Rows))
}

// formatTable renders a compact, fixed-width text table for transparency
// alongside the narrative answer.
func formatTable(result QueryResult) string {
	if len(result.Columns) == 0 {
		return ""
	}

	widths := make([]int, len(result.Columns))
	for i, c := range result.Columns {
		widths[i] = len(c)
	}
	cellStrings := make([][]string, len(result.Rows))
	for r, row := range result.Rows {
		cellStrings[r] = make([]string, len(result.Columns))
		for i, col := range result.Columns {
			s := formatCell(row[col])
			cellStrings[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var b strings.Builder
	writeRow(&b, result.Columns, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(&b, sep, widths)
	for _, row := range cellStrings {
		writeRow(&b, row, widths)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		fmt.Fprintf(b, "%-*s  ", widths[i], c)
	}
	b.WriteString("\n")
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExportXLSX writes a QueryResult to an XLSX workbook at path, for
// operators who want the answer outside the chat transcript. Mirrors
// internal/fetcher's use of tealeg/xlsx/v2, on the write side instead of
// the read side.
func ExportXLSX(result QueryResult, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("result")
	if err != nil {
		return eris.Wrap(err, "sqltool: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range result.Columns {
		header.AddCell().SetString(c)
	}

	for _, row := range result.Rows {
		xrow := sheet.AddRow()
		for _, col := range result.Columns {
			xrow.AddCell().SetString(formatCell(row[col]))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "sqltool: save xlsx")
	}
	return nil
}
