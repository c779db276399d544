package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func styledTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// RoomTableView renders the relay's room list.
func RoomTableView(rooms []string) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No open rooms")
	}

	rows := make([][]string, len(rooms))
	for i, id := range rooms {
		rows[i] = []string{fmt.Sprintf("%d", i+1), id}
	}
	return styledTable([]string{"#", "Room ID"}, rows).Render()
}

func RenderRoomTable(rooms []string) {
	fmt.Println(RoomTableView(rooms))
}

// ProbeRow is one receiver line of a probe report.
type ProbeRow struct {
	ReceiverID string
	Connected  time.Duration
	Pings      int
	Min        time.Duration
	Avg        time.Duration
	Max        time.Duration
	Err        string
}

// ProbeReportView renders per-receiver probe results followed by a status box.
func ProbeReportView(roomID string, elapsed time.Duration, rows []ProbeRow) string {
	body := make([][]string, len(rows))
	failed := 0
	for i, r := range rows {
		status := SuccessStyle.Render("ok")
		if r.Err != "" {
			status = ErrorStyle.Render(r.Err)
			failed++
		}
		body[i] = []string{
			IconPeer + " " + r.ReceiverID,
			FormatDuration(r.Connected),
			fmt.Sprintf("%d", r.Pings),
			FormatDuration(r.Min),
			FormatDuration(r.Avg),
			FormatDuration(r.Max),
			status,
		}
	}

	tbl := styledTable([]string{"Receiver", "Connect", "Pings", "Min", "Avg", "Max", "Status"}, body).Render()

	summary := fmt.Sprintf("%s Room %s  %s %s", IconRoom, BoldStyle.Render(roomID), IconTime, FormatDuration(elapsed))
	box := BoxStyle
	if failed > 0 {
		box = ErrorBoxStyle
		summary += "\n" + ErrorStyle.Render(fmt.Sprintf("%d of %d receivers failed", failed, len(rows)))
	} else {
		summary += "\n" + SuccessStyle.Render(fmt.Sprintf("%d receivers connected", len(rows)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, tbl, box.Render(summary))
}

// FormatDuration prints d rounded for display, "-" for zero.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
