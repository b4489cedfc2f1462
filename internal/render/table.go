package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bidboard/internal/snapshot"
	"bidboard/internal/store"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	colHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // CN convention: red is up
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green is down
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Options controls snapshot rendering.
type Options struct {
	// MaxRows limits data rows per snapshot; zero shows all.
	MaxRows int

	// ChangeColumns names the header cells whose values are colored by sign.
	ChangeColumns []string
}

// DefaultChangeColumns are the percentage-change headers found in the
// limit-board exports.
var DefaultChangeColumns = []string{"涨幅", "涨跌幅", "竞价涨幅"}

// Snapshot renders one timestamped table. The first row is used as the
// header.
func Snapshot(ts string, t snapshot.Table, opts Options) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" " + FormatToken(ts) + " "))
	b.WriteByte('\n')

	if len(t) == 0 {
		b.WriteString(dimStyle.Render("(empty)"))
		b.WriteByte('\n')
		return b.String()
	}

	header := make([]string, len(t[0]))
	change := make(map[int]bool)
	for i, c := range t[0] {
		header[i] = FormatCell(c)
		for _, name := range opts.ChangeColumns {
			if header[i] == name {
				change[i] = true
			}
		}
	}

	data := t[1:]
	hidden := 0
	if opts.MaxRows > 0 && len(data) > opts.MaxRows {
		hidden = len(data) - opts.MaxRows
		data = data[:opts.MaxRows]
	}

	rows := make([][]string, len(data))
	for r, row := range data {
		cells := make([]string, len(header))
		for c := range cells {
			if c < len(row) {
				cells[c] = FormatCell(row[c])
			} else {
				cells[c] = "-"
			}
		}
		rows[r] = cells
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return colHeaderStyle.Padding(0, 1)
			}
			if row < 0 || row >= len(rows) || col >= len(rows[row]) {
				return cellStyle
			}
			v := rows[row][col]
			switch {
			case v == "-":
				return cellStyle.Foreground(lipgloss.Color("245"))
			case change[col] && signOf(v) > 0:
				return gainStyle.Padding(0, 1)
			case change[col] && signOf(v) < 0:
				return lossStyle.Padding(0, 1)
			}
			return cellStyle
		})

	b.WriteString(tbl.String())
	b.WriteByte('\n')
	if hidden > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("… %s more rows", FormatInt(hidden))))
		b.WriteByte('\n')
	}
	return b.String()
}

// Result renders every snapshot of a query result in timestamp order,
// followed by a one-line summary.
func Result(res *snapshot.Result, opts Options) string {
	var b strings.Builder
	for _, ts := range res.Timestamps {
		b.WriteString(Snapshot(ts, res.Data[ts], opts))
		b.WriteByte('\n')
	}
	b.WriteString(Summary(res))
	b.WriteByte('\n')
	return b.String()
}

// Summary describes a result in one line.
func Summary(res *snapshot.Result) string {
	rows := 0
	for _, t := range res.Data {
		if len(t) > 0 {
			rows += len(t) - 1
		}
	}
	return fmt.Sprintf("%s snapshots, %s rows", FormatInt(len(res.Timestamps)), FormatInt(rows))
}

// Dates renders a date list one per line, newest last.
func Dates(dates []string) string {
	if len(dates) == 0 {
		return dimStyle.Render("no snapshot dates") + "\n"
	}
	return strings.Join(dates, "\n") + "\n"
}

// Audit renders recent query events as a table.
func Audit(events []store.QueryEvent) string {
	if len(events) == 0 {
		return dimStyle.Render("no queries recorded") + "\n"
	}

	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			e.Date,
			e.Start + "-" + e.End,
			fmt.Sprintf("%d", e.Status),
			FormatInt(e.Returned),
			FormatInt(e.Dropped),
			e.Duration.Round(100_000).String(),
			e.Error,
		}
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("TIME", "DATE", "RANGE", "STATUS", "RETURNED", "DROPPED", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return colHeaderStyle.Padding(0, 1)
			}
			if col == 3 && row >= 0 && row < len(events) && events[row].Status >= 400 {
				return errorStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return tbl.String() + "\n"
}
