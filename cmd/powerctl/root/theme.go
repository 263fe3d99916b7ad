package root

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const (
	IconCrystal = "💎"
	IconLock    = "🔒"
	IconUnlock  = "🔓"
	IconKey     = "🔑"
	IconDone    = "✅"
	IconWarn    = "⚠️"
	IconError   = "🧨"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)

	Cell = lipgloss.NewStyle().PaddingRight(2)
)

func heading(icon, title string) string {
	return Title.Render(icon + " " + title)
}

func labelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

func onOff(on bool) string {
	if on {
		return Good.Render("enabled")
	}
	return Warn.Render("disabled")
}

// table renders rows as left-aligned columns. The first row is the header.
func table(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, c := range r {
			if w := lipgloss.Width(c); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}
	lines := make([]string, 0, len(rows))
	for n, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			style := Cell.Width(widths[i] + 2)
			if n == 0 {
				style = style.Inherit(Key)
			}
			cells[i] = style.Render(c)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
