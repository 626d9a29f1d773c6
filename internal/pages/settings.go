package pages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/dct/internal/app"
	"github.com/buckleypaul/dct/internal/config"
	"github.com/buckleypaul/dct/internal/ui"
)

type settingField struct {
	label string
	key   string
}

var settingFields = []settingField{
	{"Serial Port", "serial_port"},
	{"Serial Baud Rate", "serial_baud_rate"},
	{"Read Timeout (ms)", "read_timeout_ms"},
	{"Write Timeout (ms)", "write_timeout_ms"},
	{"Settle (ms)", "settle_ms"},
	{"Poll Interval (ms)", "poll_ms"},
	{"Drain Limit", "drain_limit"},
	{"Sample Capacity", "sample_capacity"},
	{"Log Level", "log_level"},
	{"Metrics Address", "metrics_addr"},
}

type SettingsPage struct {
	cfg           *config.Config
	root          string
	cursor        int
	editing       bool
	input         textinput.Model
	width, height int
	message       string
}

func NewSettingsPage(cfg *config.Config, root string) *SettingsPage {
	ti := textinput.New()
	ti.CharLimit = 128
	return &SettingsPage{
		cfg:   cfg,
		root:  root,
		input: ti,
	}
}

func (p *SettingsPage) Init() tea.Cmd { return nil }

func (p *SettingsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if p.editing {
			switch msg.String() {
			case "enter":
				p.applyValue(p.input.Value())
				p.editing = false
				p.input.Blur()
				return p, nil
			case "esc":
				p.editing = false
				p.input.Blur()
				return p, nil
			}
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return p, cmd
		}

		switch msg.String() {
		case "down":
			if p.cursor < len(settingFields)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "enter", "e":
			p.editing = true
			p.input.SetValue(p.getValue(p.cursor))
			p.input.Focus()
			return p, p.input.Focus()
		case "s":
			if err := config.Save(*p.cfg, p.root, false); err != nil {
				p.message = fmt.Sprintf("Error saving: %v", err)
			} else {
				p.message = "Settings saved. Timing changes apply on next start."
			}
		}
	}
	return p, nil
}

func (p *SettingsPage) View() string {
	var inner strings.Builder

	for i, f := range settingFields {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		val := p.getValue(i)
		if val == "" {
			val = ui.DimStyle.Render("(not set)")
		}

		line := fmt.Sprintf("%s%-22s %s", cursor, f.label, val)
		inner.WriteString(line)
		inner.WriteString("\n")
	}

	if p.editing {
		inner.WriteString("\n")
		inner.WriteString(fmt.Sprintf("  Edit %s:\n", settingFields[p.cursor].label))
		inner.WriteString("  " + p.input.View())
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n  " + p.message)
	}

	return ui.Panel("Settings", inner.String(), p.width, 0, false)
}

func (p *SettingsPage) Name() string { return "Settings" }

func (p *SettingsPage) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save to disk")),
	}
}

func (p *SettingsPage) InputCaptured() bool {
	return p.editing
}

func (p *SettingsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *SettingsPage) getValue(idx int) string {
	switch settingFields[idx].key {
	case "serial_port":
		return p.cfg.SerialPort
	case "log_level":
		return p.cfg.LogLevel
	case "metrics_addr":
		return p.cfg.MetricsAddr
	}
	if n := p.intField(settingFields[idx].key); n != nil {
		return strconv.Itoa(*n)
	}
	return ""
}

func (p *SettingsPage) intField(key string) *int {
	switch key {
	case "serial_baud_rate":
		return &p.cfg.SerialBaudRate
	case "read_timeout_ms":
		return &p.cfg.ReadTimeoutMS
	case "write_timeout_ms":
		return &p.cfg.WriteTimeoutMS
	case "settle_ms":
		return &p.cfg.SettleMS
	case "poll_ms":
		return &p.cfg.PollMS
	case "drain_limit":
		return &p.cfg.DrainLimit
	case "sample_capacity":
		return &p.cfg.SampleCapacity
	}
	return nil
}

func (p *SettingsPage) applyValue(val string) {
	f := settingFields[p.cursor]
	switch f.key {
	case "serial_port":
		p.cfg.SerialPort = val
	case "log_level":
		p.cfg.LogLevel = val
	case "metrics_addr":
		p.cfg.MetricsAddr = val
	default:
		dst := p.intField(f.key)
		n, err := strconv.Atoi(val)
		if dst == nil || err != nil || n <= 0 {
			p.message = fmt.Sprintf("%s must be a positive number", f.label)
			return
		}
		*dst = n
	}
	p.message = fmt.Sprintf("%s updated", f.label)
}
