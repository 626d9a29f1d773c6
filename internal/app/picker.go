package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/dct/internal/serial"
	"github.com/buckleypaul/dct/internal/ui"
)

// PortSelectedMsg is sent when a port is chosen in the picker.
type PortSelectedMsg struct {
	Port string
}

// PickerClosedMsg is sent when the picker is dismissed.
type PickerClosedMsg struct{}

const maxPickerRows = 10

// PortPicker is a filterable overlay listing serial ports.
type PortPicker struct {
	ports   []serial.PortInfo
	matches []serial.PortInfo
	current string
	input   textinput.Model
	cursor  int
	width   int
}

// NewPortPicker lists ports and marks current, the connected port, if any.
// The cursor starts on current when it is present.
func NewPortPicker(ports []serial.PortInfo, current string) *PortPicker {
	ti := textinput.New()
	ti.Placeholder = "name, product or vid:pid"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.Focus()

	p := &PortPicker{ports: ports, current: current, input: ti}
	p.filter()
	for i, port := range p.matches {
		if port.Name == current {
			p.cursor = i
		}
	}
	return p
}

func (p *PortPicker) SetWidth(w int) { p.width = w }

func (p *PortPicker) Update(msg tea.Msg) (*PortPicker, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return p, func() tea.Msg { return PickerClosedMsg{} }
		case "enter":
			if p.cursor < len(p.matches) {
				name := p.matches[p.cursor].Name
				return p, func() tea.Msg { return PortSelectedMsg{Port: name} }
			}
			return p, nil
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down":
			if p.cursor < len(p.matches)-1 {
				p.cursor++
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return p, cmd
}

func (p *PortPicker) View() string {
	boxWidth := min(max(p.width-4, 36), 64)
	inner := boxWidth - 4
	p.input.Width = inner - 3

	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("Select Port") + "\n\n")
	b.WriteString(p.input.View() + "\n\n")

	start := 0
	if p.cursor >= maxPickerRows {
		start = p.cursor - maxPickerRows + 1
	}
	end := min(start+maxPickerRows, len(p.matches))

	selected := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	for i := start; i < end; i++ {
		b.WriteString(p.row(p.matches[i], i == p.cursor, inner, selected) + "\n")
	}
	if len(p.matches) == 0 {
		if len(p.ports) == 0 {
			b.WriteString(ui.DimStyle.Render("  No serial ports found.") + "\n")
		} else {
			b.WriteString(ui.DimStyle.Render("  No matches") + "\n")
		}
	}

	b.WriteString("\n" + ui.DimStyle.Render(fmt.Sprintf("%d/%d ports  enter:connect  esc:close", len(p.matches), len(p.ports))))

	return lipgloss.NewStyle().
		Width(boxWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(0, 1).
		Render(b.String())
}

func (p *PortPicker) row(port serial.PortInfo, active bool, width int, selected lipgloss.Style) string {
	mark := "  "
	if port.Name == p.current {
		mark = "● "
	}
	name := port.Name
	if len(name) > width-4 {
		name = name[:width-4]
	}
	if active {
		name = selected.Render("> " + mark + name)
	} else {
		name = "  " + mark + name
	}
	if port.Description != "" && len(port.Name)+6+len(port.Description) <= width {
		name += "  " + ui.DimStyle.Render(port.Description)
	}
	return name
}

func (p *PortPicker) filter() {
	query := strings.ToLower(strings.TrimSpace(p.input.Value()))
	p.matches = p.matches[:0]
	for _, port := range p.ports {
		if query == "" || strings.Contains(searchText(port), query) {
			p.matches = append(p.matches, port)
		}
	}
	if p.cursor >= len(p.matches) {
		p.cursor = max(len(p.matches)-1, 0)
	}
}

func searchText(port serial.PortInfo) string {
	parts := []string{port.Name, port.Description, port.SerialNumber}
	if port.VID != "" {
		parts = append(parts, port.VID+":"+port.PID)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
