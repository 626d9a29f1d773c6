package serial

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultReadTimeout  = 50 * time.Millisecond
	DefaultWriteTimeout = 250 * time.Millisecond
	DefaultSettle       = 200 * time.Millisecond

	// maxLineLength bounds the unterminated input kept between reads.
	maxLineLength = 4096
)

var (
	// ErrPortBusy means another process (or another Link) holds the port.
	ErrPortBusy = errors.New("serial port busy")
	// ErrWriteTimeout means the device did not accept a write in time.
	ErrWriteTimeout = errors.New("serial write timed out")
)

// ConnectionError reports a failure to open or configure a port.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Port is the subset of go.bug.st/serial.Port the link relies on.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Opener opens a named port.
type Opener func(name string, mode *serial.Mode) (Port, error)

func openPort(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Option configures a Link.
type Option func(*Link)

// WithTimeouts sets the read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(l *Link) {
		if read > 0 {
			l.readTimeout = read
		}
		if write > 0 {
			l.writeTimeout = write
		}
	}
}

// WithSettle sets how long Connect waits for the device after opening.
func WithSettle(d time.Duration) Option {
	return func(l *Link) { l.settle = d }
}

func WithOpener(o Opener) Option {
	return func(l *Link) { l.open = o }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Link) { l.log = log }
}

// Link owns the connection to the device: one port at a time, newline
// framed writes and timeout-bounded line reads.
type Link struct {
	mu           sync.Mutex
	port         Port
	portName     string
	baudRate     int
	readTimeout  time.Duration
	writeTimeout time.Duration
	settle       time.Duration
	open         Opener
	log          *zap.Logger
	pending      []byte
}

// NewLink creates a disconnected link.
func NewLink(opts ...Option) *Link {
	l := &Link{
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		settle:       DefaultSettle,
		open:         openPort,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect opens portName, closing any previous connection first. After
// opening it waits for the device to settle and discards stale bytes.
func (l *Link) Connect(portName string, baudRate int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := l.open(portName, mode)
	if err != nil {
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.PortBusy {
			err = fmt.Errorf("%w: %v", ErrPortBusy, err)
		}
		return &ConnectionError{Port: portName, Err: err}
	}
	if err := port.SetReadTimeout(l.readTimeout); err != nil {
		port.Close()
		return &ConnectionError{Port: portName, Err: fmt.Errorf("set read timeout: %w", err)}
	}

	if l.settle > 0 {
		time.Sleep(l.settle)
	}
	if err := port.ResetInputBuffer(); err != nil {
		l.log.Debug("reset input buffer failed", zap.String("port", portName), zap.Error(err))
	}
	if err := port.ResetOutputBuffer(); err != nil {
		l.log.Debug("reset output buffer failed", zap.String("port", portName), zap.Error(err))
	}

	l.port = port
	l.portName = portName
	l.baudRate = baudRate
	l.log.Info("serial port opened", zap.String("port", portName), zap.Int("baud", baudRate))
	return nil
}

// Close releases the port. It is safe to call at any time, any number of
// times, and always leaves the link disconnected.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	return nil
}

func (l *Link) closeLocked() {
	if l.port == nil {
		return
	}
	if err := l.port.Close(); err != nil {
		l.log.Debug("serial close failed", zap.String("port", l.portName), zap.Error(err))
	}
	l.log.Info("serial port closed", zap.String("port", l.portName))
	l.port = nil
	l.pending = nil
}

// Connected reports whether a port is open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// PortName returns the name of the open port, or "" when disconnected.
func (l *Link) PortName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return ""
	}
	return l.portName
}

// WriteLine sends text followed by a newline. Errors and write timeouts
// are logged and reported as false.
func (l *Link) WriteLine(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return false
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	port := l.port
	done := make(chan error, 1)
	go func() {
		_, err := port.Write([]byte(text))
		done <- err
	}()

	timer := time.NewTimer(l.writeTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			l.log.Warn("serial write failed", zap.String("port", l.portName), zap.Error(err))
			return false
		}
		return true
	case <-timer.C:
		l.log.Warn("serial write failed", zap.String("port", l.portName), zap.Error(ErrWriteTimeout))
		return false
	}
}

// ReadLine returns the next non-empty line without its CR/LF terminator.
// It waits at most the read timeout; ok is false when no complete line
// arrived in that time. Invalid UTF-8 is replaced rather than rejected.
// A non-nil error means the port failed and the link is now closed.
func (l *Link) ReadLine() (line string, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return "", false, nil
	}
	if line, ok := l.takeLine(); ok {
		return line, true, nil
	}

	// Each read after the first waits only for what is left of the
	// deadline; the port's timeout is restored on return.
	deadline := time.Now().Add(l.readTimeout)
	wait := l.readTimeout
	defer func() {
		if wait != l.readTimeout && l.port != nil {
			_ = l.port.SetReadTimeout(l.readTimeout)
		}
	}()

	buf := make([]byte, 256)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			l.pending = append(l.pending, buf[:n]...)
		}
		if err != nil {
			name := l.portName
			l.log.Error("serial read failed", zap.String("port", name), zap.Error(err))
			l.closeLocked()
			return "", false, fmt.Errorf("read %s: %w", name, err)
		}
		if line, ok := l.takeLine(); ok {
			return line, true, nil
		}
		remaining := time.Until(deadline)
		if n == 0 || remaining < time.Millisecond {
			return "", false, nil
		}
		wait = remaining
		if err := l.port.SetReadTimeout(remaining); err != nil {
			l.log.Debug("shorten read timeout failed", zap.String("port", l.portName), zap.Error(err))
			return "", false, nil
		}
	}
}

func (l *Link) takeLine() (string, bool) {
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			if len(l.pending) < maxLineLength {
				return "", false
			}
			idx = len(l.pending)
		}
		raw := l.pending[:idx]
		if idx < len(l.pending) {
			l.pending = l.pending[idx+1:]
		} else {
			l.pending = nil
		}
		line := strings.ToValidUTF8(strings.TrimRight(string(raw), "\r\n"), "�")
		if line != "" {
			return line, true
		}
	}
}
