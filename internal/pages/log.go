package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/dct/internal/app"
	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/ui"
)

const maxLogLines = 2000

type LogPage struct {
	lines         []string
	viewport      viewport.Model
	follow        bool
	width, height int
}

func NewLogPage() *LogPage {
	return &LogPage{
		viewport: viewport.New(0, 0),
		follow:   true,
	}
}

func (p *LogPage) Init() tea.Cmd { return nil }

func (p *LogPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.EngineMsg:
		if msg.Message == "" {
			return p, nil
		}
		p.append(msg.Notification)
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			p.lines = nil
			p.viewport.SetContent("")
			return p, nil
		case "f":
			p.follow = !p.follow
			if p.follow {
				p.viewport.GotoBottom()
			}
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *LogPage) append(n engine.Notification) {
	line := fmt.Sprintf("[%s] %s", n.Time.Format("15:04:05"), n.Message)
	switch n.Kind {
	case engine.NoteSent:
		line = ui.SentStyle.Render(line)
	case engine.NoteError:
		line = ui.ErrorStyle.Render(line)
	case engine.NoteDetect, engine.NoteSummary, engine.NoteHealth, engine.NoteStatus:
		line = ui.EventStyle.Render(line)
	}

	p.lines = append(p.lines, line)
	if len(p.lines) > maxLogLines {
		p.lines = p.lines[len(p.lines)-maxLogLines:]
	}
	p.viewport.SetContent(strings.Join(p.lines, "\n"))
	if p.follow {
		p.viewport.GotoBottom()
	}
}

func (p *LogPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("Log"))
	b.WriteString("\n")

	if len(p.lines) == 0 {
		b.WriteString(ui.DimStyle.Render("  No device output yet."))
		return b.String()
	}
	b.WriteString(p.viewport.View())
	return b.String()
}

func (p *LogPage) Name() string { return "Log" }

func (p *LogPage) ShortHelp() []key.Binding {
	follow := "follow"
	if p.follow {
		follow = "unfollow"
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		key.NewBinding(key.WithKeys("f"), key.WithHelp("f", follow)),
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
	}
}

func (p *LogPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	vpHeight := h - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	p.viewport.Width = w - 4
	p.viewport.Height = vpHeight
}
