package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/dct/internal/app"
	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/session"
	"github.com/buckleypaul/dct/internal/ui"
)

type OpampPage struct {
	eng           *engine.Engine
	message       string
	width, height int
}

func NewOpampPage(eng *engine.Engine) *OpampPage {
	return &OpampPage{eng: eng}
}

func (p *OpampPage) Init() tea.Cmd { return nil }

func (p *OpampPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.EngineMsg:
		switch msg.Kind {
		case engine.NoteError, engine.NoteHealth, engine.NoteSummary:
			p.message = msg.Message
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "o", "enter":
			_ = p.eng.StartOpamp()
		case "s":
			_ = p.eng.StopTest()
		case "r":
			_ = p.eng.ResetTest()
		case "d":
			_ = p.eng.RequestDetect(session.TargetOpamp)
		}
	}
	return p, nil
}

func (p *OpampPage) View() string {
	s := p.eng.Session()
	var b strings.Builder

	b.WriteString(ui.Field("Chip", s.OpampChip()) + "\n")
	run := ui.Badge("IDLE", ui.Subtle)
	if s.OpampRunning() {
		run = ui.SuccessBadge("RUNNING")
	}
	b.WriteString(ui.Field("Sweep", run) + "\n")

	h := s.Health()
	b.WriteString(ui.Field("Supply", fmt.Sprintf("min %s  max %s  avg %s", volts(h.Min), volts(h.Max), volts(h.Avg))) + "\n\n")

	st := s.Stats()
	if st.Count == 0 {
		b.WriteString(ui.DimStyle.Render("  No samples yet.") + "\n")
	} else {
		b.WriteString(ui.Field("Samples", fmt.Sprintf("%d", st.Count)) + "\n")
		b.WriteString(ui.Field("Vout", fmt.Sprintf("min %.3fV  max %.3fV  avg %.3fV", st.Min, st.Max, st.Avg())) + "\n")

		if last, ok := s.LastSample(); ok {
			b.WriteString(ui.Field("Last", fmt.Sprintf("duty %d  %.3fV", last.Duty, last.Voltage)) + "\n\n")
		}

		samples := s.Samples()

		trace := make([]float64, len(samples))
		for i, smp := range samples {
			trace[i] = smp.Voltage
		}
		b.WriteString("  " + ui.Sparkline(trace, p.width-8) + "\n")
	}

	if p.message != "" {
		b.WriteString("\n  " + p.message)
	}

	return ui.Panel("Op-amp", b.String(), p.width, 0, false)
}

func volts(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fV", *v)
}

func (p *OpampPage) Name() string { return "Op-amp" }

func (p *OpampPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "start sweep")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "detect")),
	}
}

func (p *OpampPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
