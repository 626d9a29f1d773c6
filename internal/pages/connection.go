package pages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/dct/internal/app"
	"github.com/buckleypaul/dct/internal/config"
	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/serial"
	"github.com/buckleypaul/dct/internal/ui"
)

type portsLoadedMsg struct {
	ports []serial.PortInfo
}

type ConnectionPage struct {
	eng       *engine.Engine
	cfg       *config.Config
	listPorts func() []serial.PortInfo
	ports     []serial.PortInfo
	cursor    int
	scanning  bool
	message   string
	width     int
	height    int
}

func NewConnectionPage(eng *engine.Engine, cfg *config.Config, listPorts func() []serial.PortInfo) *ConnectionPage {
	if listPorts == nil {
		listPorts = serial.ListPorts
	}
	return &ConnectionPage{
		eng:       eng,
		cfg:       cfg,
		listPorts: listPorts,
	}
}

func (p *ConnectionPage) Init() tea.Cmd { return p.scan() }

func (p *ConnectionPage) scan() tea.Cmd {
	p.scanning = true
	list := p.listPorts
	return func() tea.Msg { return portsLoadedMsg{ports: list()} }
}

func (p *ConnectionPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case portsLoadedMsg:
		p.scanning = false
		p.ports = msg.ports
		p.cursor = 0
		for i, port := range p.ports {
			if port.Name == p.cfg.SerialPort {
				p.cursor = i
				break
			}
		}

	case app.EngineMsg:
		switch msg.Kind {
		case engine.NoteConnection, engine.NoteError:
			p.message = msg.Message
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "down", "j":
			if p.cursor < len(p.ports)-1 {
				p.cursor++
			}
		case "up", "k":
			if p.cursor > 0 {
				p.cursor--
			}
		case "r":
			return p, p.scan()
		case "enter", "c":
			if len(p.ports) == 0 {
				p.message = "No serial ports found."
				return p, nil
			}
			name := p.ports[p.cursor].Name
			p.message = fmt.Sprintf("Connecting to %s...", name)
			return p, app.ConnectRequest(name)
		case "d":
			p.eng.Disconnect()
		}
	}
	return p, nil
}

func (p *ConnectionPage) View() string {
	var b strings.Builder

	var status string
	switch p.eng.State() {
	case engine.Connected:
		status = ui.SuccessBadge("CONNECTED")
	case engine.Connecting:
		status = ui.WarningBadge("CONNECTING")
	default:
		status = ui.ErrorBadge("DISCONNECTED")
	}
	b.WriteString(ui.Field("Status", status) + "\n")
	b.WriteString(ui.Field("Port", p.eng.Port()) + "\n")
	b.WriteString(ui.Field("Baud", strconv.Itoa(p.cfg.SerialBaudRate)) + "\n\n")

	switch {
	case p.scanning:
		b.WriteString(ui.DimStyle.Render("  Scanning for ports..."))
	case len(p.ports) == 0:
		b.WriteString(ui.DimStyle.Render("  No serial ports found. Press r to rescan."))
	default:
		for i, port := range p.ports {
			cursor := "  "
			if i == p.cursor {
				cursor = ui.BoldStyle.Render("> ")
			}
			line := fmt.Sprintf("%s%-24s %s", cursor, port.Name, ui.DimStyle.Render(port.Description))
			b.WriteString(line + "\n")
		}
	}

	if p.message != "" {
		b.WriteString("\n\n  " + p.message)
	}

	return ui.Panel("Connection", b.String(), p.width, 0, false)
}

func (p *ConnectionPage) Name() string { return "Connection" }

func (p *ConnectionPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	}
}

func (p *ConnectionPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
