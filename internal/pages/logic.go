package pages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/dct/internal/app"
	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/session"
	"github.com/buckleypaul/dct/internal/testdef"
	"github.com/buckleypaul/dct/internal/ui"
)

type LogicPage struct {
	eng           *engine.Engine
	input         textinput.Model
	loading       bool
	message       string
	width, height int
}

func NewLogicPage(eng *engine.Engine) *LogicPage {
	ti := textinput.New()
	ti.Placeholder = "path/to/test.yaml"
	ti.CharLimit = 256
	return &LogicPage{
		eng:   eng,
		input: ti,
	}
}

func (p *LogicPage) Init() tea.Cmd { return nil }

func (p *LogicPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.EngineMsg:
		switch msg.Kind {
		case engine.NoteError, engine.NoteTestKind, engine.NoteDetect, engine.NoteSummary, engine.NoteDefinition:
			p.message = msg.Message
		}
		return p, nil

	case tea.KeyMsg:
		if p.loading {
			switch msg.String() {
			case "enter":
				p.loading = false
				p.input.Blur()
				p.upload(strings.TrimSpace(p.input.Value()))
				return p, nil
			case "esc":
				p.loading = false
				p.input.Blur()
				return p, nil
			}
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return p, cmd
		}

		switch msg.String() {
		case "n":
			_ = p.eng.SelectTest(protocol.NAND)
		case "i":
			_ = p.eng.SelectTest(protocol.Inverter)
		case "t", "enter":
			_ = p.eng.StartTest()
		case "s":
			_ = p.eng.StopTest()
		case "r":
			_ = p.eng.ResetTest()
		case "d":
			_ = p.eng.RequestDetect(session.TargetLogic)
		case "l":
			p.loading = true
			return p, p.input.Focus()
		}
	}
	return p, nil
}

func (p *LogicPage) upload(path string) {
	if path == "" {
		return
	}
	def, err := testdef.Load(path)
	if err != nil {
		p.message = fmt.Sprintf("Failed to load test: %v", err)
		return
	}
	_ = p.eng.UploadDefinition(def)
}

func (p *LogicPage) View() string {
	s := p.eng.Session()
	var b strings.Builder

	b.WriteString(ui.Field("Test", s.Kind().Label()) + "\n")
	b.WriteString(ui.Field("Chip", s.LogicChip()) + "\n")
	loaded := ""
	if s.DefinitionLoaded() {
		loaded = ui.SuccessBadge("LOADED")
	}
	b.WriteString(ui.Field("Upload", loaded) + "\n\n")

	b.WriteString(renderTruthTable(s.Expected(), s.Results()))

	if sum, ok := s.Summary(); ok {
		b.WriteString("\n")
		badge := ui.SuccessBadge("PASS")
		if sum.Fails > 0 {
			badge = ui.ErrorBadge("FAIL")
		}
		b.WriteString(fmt.Sprintf("  %s %d pass / %d fail (%.1f%%)\n", badge, sum.Passes, sum.Fails, sum.PassRate))
	}

	if p.loading {
		b.WriteString("\n  Load test definition:\n")
		b.WriteString("  " + p.input.View() + "\n")
	}

	if p.message != "" {
		b.WriteString("\n  " + p.message)
	}

	return ui.Panel("Logic", b.String(), p.width, 0, false)
}

func renderTruthTable(expected []protocol.Row, results []session.Cell) string {
	if len(expected) == 0 {
		return ui.DimStyle.Render("  No truth table for this chip.") + "\n"
	}

	var b strings.Builder
	names := []string{"A", "B"}
	arity := len(expected[0].Inputs)

	var header []string
	for i := 0; i < arity && i < len(names); i++ {
		header = append(header, names[i])
	}
	header = append(header, "Y", "obs")
	b.WriteString("  " + ui.HeaderStyle.Render(strings.Join(header, "  ")) + "\n")

	for i, row := range expected {
		var cols []string
		for _, in := range row.Inputs {
			cols = append(cols, strconv.Itoa(in))
		}
		cols = append(cols, strconv.Itoa(row.Output))
		var got *int
		if i < len(results) {
			got = results[i].Output
		}
		cols = append(cols, " "+ui.ResultCell(row.Output, got))
		b.WriteString("  " + strings.Join(cols, "  ") + "\n")
	}
	return b.String()
}

func (p *LogicPage) Name() string { return "Logic" }

func (p *LogicPage) ShortHelp() []key.Binding {
	if p.loading {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "upload")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "nand")),
		key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inverter")),
		key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "start")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "detect")),
		key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "load test")),
	}
}

func (p *LogicPage) InputCaptured() bool {
	return p.loading
}

func (p *LogicPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	p.input.Width = w - 8
}
