package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/ui"
)

const sidebarWidth = 22 // 20 content + 2 border/padding

func renderConnectionBar(eng *engine.Engine, baud, width int, sidebarFocused bool) string {
	var conn string
	switch eng.State() {
	case engine.Connected:
		conn = ui.SuccessBadge("CONNECTED") + fmt.Sprintf(" %s @ %d", eng.Port(), baud)
	case engine.Connecting:
		conn = ui.Badge("CONNECTING", ui.Warning)
	default:
		conn = ui.ErrorBadge("DISCONNECTED")
	}

	s := eng.Session()
	chip := s.LogicChip()
	if chip == "" {
		chip = "(none)"
	}
	content := fmt.Sprintf("%s  Test: %s  Chip: %s", conn, s.Kind().Label(), chip)
	hint := ""
	if sidebarFocused {
		hint = ui.DimStyle.Render("  [p] ports")
	}
	return ui.StatusBarStyle.Width(width).Render(content + hint)
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, height int, focused bool) string {
	var b strings.Builder
	var title string
	if focused {
		title = ui.BoldStyle.Render("dct [FOCUSED]")
	} else {
		title = ui.TitleStyle.Render("dct")
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	for _, id := range pages {
		p := pageMap[id]
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, width int, focus FocusArea) string {
	var parts []string

	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("p", "ports"),
		)
	} else {
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	line := strings.Join(parts, "  ")
	return ui.StatusBarStyle.Width(width).Render(line)
}

func renderHelp(pages []PageID, pageMap map[PageID]Page) string {
	var b strings.Builder
	for _, id := range pages {
		p := pageMap[id]
		b.WriteString(ui.BoldStyle.Render(p.Name()))
		b.WriteString("\n")
		for _, kb := range p.ShortHelp() {
			b.WriteString(fmt.Sprintf("  %-8s %s\n", kb.Help().Key, kb.Help().Desc))
		}
	}
	return ui.Panel("Help", b.String(), 40, 0, true)
}

func renderLayout(connBar, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, connBar, main, statusBar)
}
