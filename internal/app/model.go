package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/buckleypaul/dct/internal/config"
	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/serial"
	"github.com/buckleypaul/dct/internal/ui"
)

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

// Options configures the application model.
type Options struct {
	Config *config.Config
	Root   string
	// Definition is uploaded after every successful connect.
	Definition  *protocol.TestDefinition
	AutoConnect bool
	ListPorts   func() []serial.PortInfo
	Logger      *zap.Logger
}

type noteQueue struct {
	items []engine.Notification
}

func (q *noteQueue) push(n engine.Notification) { q.items = append(q.items, n) }

func (q *noteQueue) take() []engine.Notification {
	out := q.items
	q.items = nil
	return out
}

type Model struct {
	pages       map[PageID]Page
	activePage  PageID
	focus       FocusArea
	width       int
	height      int
	showHelp    bool
	picker      *PortPicker
	eng         *engine.Engine
	notes       *noteQueue
	cfg         *config.Config
	root        string
	def         *protocol.TestDefinition
	autoConnect bool
	listPorts   func() []serial.PortInfo
	log         *zap.Logger
}

func New(pages map[PageID]Page, eng *engine.Engine, opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}
	m := Model{
		pages:       pages,
		eng:         eng,
		notes:       &noteQueue{},
		cfg:         cfg,
		root:        opts.Root,
		def:         opts.Definition,
		autoConnect: opts.AutoConnect,
		listPorts:   opts.ListPorts,
		log:         opts.Logger,
	}
	if m.listPorts == nil {
		m.listPorts = serial.ListPorts
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	eng.Subscribe(m.notes.push)
	return m
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range m.pages {
		if cmd := p.Init(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, m.tick())
	if m.autoConnect && m.cfg.SerialPort != "" {
		cmds = append(cmds, ConnectRequest(m.cfg.SerialPort))
	}
	return tea.Batch(cmds...)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval(), func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth := m.width - sidebarWidth
		contentHeight := m.height - 2 - 1 // status bar + connection bar
		for _, p := range m.pages {
			p.SetSize(contentWidth, contentHeight)
		}
		return m, nil

	case pollMsg:
		m.eng.Poll()
		return m.flush(m.tick())

	case ConnectMsg:
		m.connect(msg.Port)
		return m.flush()

	case PortSelectedMsg:
		m.picker = nil
		return m, ConnectRequest(msg.Port)

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case tea.KeyMsg:
		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}

		// When a page has an active text input, forward all keys
		// directly to the page. Only ctrl+c still quits.
		if m.focus == FocusContent {
			if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				page := m.pages[m.activePage]
				newPage, cmd := page.Update(msg)
				m.pages[m.activePage] = newPage
				return m.flush(cmd)
			}
		}

		switch {
		case key.Matches(msg, GlobalKeys.Quit):
			m.eng.Disconnect()
			return m, tea.Quit
		case key.Matches(msg, GlobalKeys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, GlobalKeys.ToggleFocus):
			if m.focus == FocusSidebar {
				m.focus = FocusContent
				return m, nil
			}
			// When content focused, fall through to page handler
		}

		if m.focus == FocusSidebar {
			if key.Matches(msg, GlobalKeys.PortPicker) {
				m.openPicker()
				return m, nil
			}
			switch msg.String() {
			case "up":
				m.prevPage()
				return m, nil
			case "down":
				m.nextPage()
				return m, nil
			case "enter", "right":
				m.focus = FocusContent
				return m, nil
			}
			return m, nil
		}

		if msg.String() == "left" {
			m.focus = FocusSidebar
			return m, nil
		}

		page := m.pages[m.activePage]
		newPage, cmd := page.Update(msg)
		m.pages[m.activePage] = newPage
		return m.flush(cmd)
	}

	// Non-key messages (command results, etc.): forward to all pages
	// so responses reach the page that initiated the command
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m.flush(cmds...)
}

// flush broadcasts queued engine notifications to every page.
func (m Model) flush(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	for batch := m.notes.take(); len(batch) > 0; batch = m.notes.take() {
		for _, n := range batch {
			for id, page := range m.pages {
				newPage, cmd := page.Update(EngineMsg{Notification: n})
				m.pages[id] = newPage
				if cmd != nil {
					cmds = append(cmds, cmd)
				}
			}
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) connect(port string) {
	if err := m.eng.Connect(port, m.cfg.SerialBaudRate); err != nil {
		return
	}
	if m.cfg.SerialPort != port {
		m.cfg.SerialPort = port
		if err := config.Save(*m.cfg, m.root, false); err != nil {
			m.log.Warn("saving last port", zap.Error(err))
		}
	}
	if m.def != nil {
		_ = m.eng.UploadDefinition(*m.def)
	}
}

func (m *Model) openPicker() {
	m.picker = NewPortPicker(m.listPorts(), m.eng.Port())
	m.picker.SetWidth(m.width - sidebarWidth)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth := m.width - sidebarWidth
	contentHeight := m.height - 2 - 1 // status bar + connection bar

	page := m.pages[m.activePage]

	connBar := renderConnectionBar(m.eng, m.cfg.SerialBaudRate, m.width, m.focus == FocusSidebar)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, contentHeight, m.focus == FocusSidebar)
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(page.View())

	switch {
	case m.picker != nil:
		m.picker.SetWidth(contentWidth)
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			m.picker.View(),
		)
	case m.showHelp:
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			renderHelp(PageOrder, m.pages),
		)
	}

	statusBar := renderStatusBar(page.ShortHelp(), m.width, m.focus)

	return renderLayout(connBar, sidebar, content, statusBar)
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i+1)%len(PageOrder)]
			return
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i-1+len(PageOrder))%len(PageOrder)]
			return
		}
	}
}
