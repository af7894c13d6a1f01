package matrix

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = cellStyle.Foreground(lipgloss.Color("#c94f6d"))
)

// Render formats the survey as a bordered table.
func Render(rows []Row) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("case", "source", "without control_type", "with control_type")

	for _, r := range rows {
		t.Row(r.Case, r.Source, r.WithoutControl.String(), r.WithControl.String())
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if row >= 0 && row < len(rows) {
			r := rows[row]
			if (col == 2 && r.WithoutControl.Err != nil) || (col == 3 && r.WithControl.Err != nil) {
				return errorStyle
			}
		}
		return cellStyle
	})
	return t.String()
}
