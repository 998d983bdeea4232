package sqltools

import (
	"fmt"
	"strings"

	"github.com/janhq/sql-agent/internal/infrastructure/database"
)

// RenderTable prints a CREATE TABLE statement for table followed by a comment
// holding the sample rows.
func RenderTable(table string, columns []database.Column, sample database.Rows, sampleRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", table)

	var keys []string
	lines := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		line := fmt.Sprintf("\t%s %s", col.Name, strings.ToUpper(col.Type))
		if !col.Nullable {
			line += " NOT NULL"
		}
		if col.Default != "" {
			line += " DEFAULT " + col.Default
		}
		if col.PrimaryKey {
			keys = append(keys, col.Name)
		}
		lines = append(lines, line)
	}
	if len(keys) > 0 {
		lines = append(lines, fmt.Sprintf("\tCONSTRAINT %s_pkey PRIMARY KEY (%s)", table, strings.Join(keys, ", ")))
	}
	b.WriteString(strings.Join(lines, ", \n"))
	b.WriteString("\n)")

	if sampleRows > 0 {
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", sampleRows, table)
		if len(sample.Columns) > 0 {
			b.WriteString(renderTSV(sample))
			b.WriteString("\n")
		}
		b.WriteString("*/")
	}
	return b.String()
}

// RenderRows prints a result set as tab separated text with a header line.
func RenderRows(rows database.Rows) string {
	out := renderTSV(rows)
	if rows.Truncated {
		out += fmt.Sprintf("\n(showing the first %d rows)", len(rows.Values))
	}
	return out
}

func renderTSV(rows database.Rows) string {
	lines := make([]string, 0, len(rows.Values)+1)
	lines = append(lines, strings.Join(rows.Columns, "\t"))
	for _, values := range rows.Values {
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case string:
		if len(value) > 100 {
			return value[:100] + "..."
		}
		return value
	default:
		return fmt.Sprint(value)
	}
}
