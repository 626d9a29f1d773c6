package pages

import (
	"testing"

	"github.com/buckleypaul/dct/internal/engine"
	"github.com/buckleypaul/dct/internal/serial"
)

type fakeLink struct {
	connected bool
	lines     []string
	writes    []string
}

func (f *fakeLink) Connect(port string, baud int) error {
	f.connected = true
	return nil
}

func (f *fakeLink) Connected() bool { return f.connected }

func (f *fakeLink) WriteLine(text string) bool {
	if !f.connected {
		return false
	}
	f.writes = append(f.writes, text)
	return true
}

func (f *fakeLink) ReadLine() (string, bool, error) {
	if !f.connected || len(f.lines) == 0 {
		return "", false, nil
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, true, nil
}

func (f *fakeLink) Close() error {
	f.connected = false
	return nil
}

func (f *fakeLink) lastWrite() string {
	if len(f.writes) == 0 {
		return ""
	}
	return f.writes[len(f.writes)-1]
}

func newEngine(t *testing.T, connect bool) (*engine.Engine, *fakeLink) {
	t.Helper()
	link := &fakeLink{}
	eng := engine.New(link, engine.Options{})
	if connect {
		if err := eng.Connect("/dev/ttyACM0", 9600); err != nil {
			t.Fatalf("connect: %v", err)
		}
		link.writes = nil
	}
	return eng, link
}

func staticPorts(names ...string) func() []serial.PortInfo {
	return func() []serial.PortInfo {
		out := make([]serial.PortInfo, len(names))
		for i, n := range names {
			out[i] = serial.PortInfo{Name: n, Description: "Pico"}
		}
		return out
	}
}
