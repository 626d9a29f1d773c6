package engine

import "errors"

type fakeLink struct {
	connected  bool
	connectErr error
	lines      []string
	readErr    error
	failWrites bool
	writes     []string
	reads      int
	closeCalls int
}

func (f *fakeLink) Connect(port string, baud int) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeLink) Connected() bool { return f.connected }

func (f *fakeLink) WriteLine(text string) bool {
	if !f.connected || f.failWrites {
		return false
	}
	f.writes = append(f.writes, text)
	return true
}

func (f *fakeLink) ReadLine() (string, bool, error) {
	if !f.connected {
		return "", false, nil
	}
	f.reads++
	if len(f.lines) == 0 {
		if f.readErr != nil {
			f.connected = false
			return "", false, f.readErr
		}
		return "", false, nil
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, true, nil
}

func (f *fakeLink) Close() error {
	f.closeCalls++
	f.connected = false
	return nil
}

func (f *fakeLink) feed(lines ...string) {
	f.lines = append(f.lines, lines...)
}

var errUnplugged = errors.New("device unplugged")
