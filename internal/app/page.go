package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/dct/internal/engine"
)

// PageID identifies each page in the application.
type PageID int

const (
	ConnectionPage PageID = iota
	LogicPage
	OpampPage
	LogPage
	SettingsPage
)

var PageOrder = []PageID{
	ConnectionPage,
	LogicPage,
	OpampPage,
	LogPage,
	SettingsPage,
}

// Page is the interface every page in the application implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// EngineMsg is broadcast to all pages for every engine notification.
type EngineMsg struct {
	engine.Notification
}

// ConnectMsg asks the app to open a port.
type ConnectMsg struct {
	Port string
}

// ConnectRequest returns a command that asks the app to connect to port.
func ConnectRequest(port string) tea.Cmd {
	return func() tea.Msg { return ConnectMsg{Port: port} }
}

type pollMsg struct{}
