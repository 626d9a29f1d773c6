package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buckleypaul/dct/internal/metrics"
	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/session"
)

// DefaultDrainLimit bounds the lines handled per poll tick.
const DefaultDrainLimit = 50

// ErrNotConnected is returned by intents issued without an open device.
var ErrNotConnected = errors.New("not connected to the device")

// SendError reports a command the link failed to write.
type SendError struct {
	Command string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send %q", e.Command)
}

// Link is the serial transport the engine drives.
type Link interface {
	Connect(port string, baud int) error
	Connected() bool
	WriteLine(text string) bool
	ReadLine() (line string, ok bool, err error)
	Close() error
}

// ConnState is the engine's connection lifecycle state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	DrainLimit     int
	SampleCapacity int
	Logger         *zap.Logger
	Now            func() time.Time
}

// Engine keeps a session in step with the device: it issues intents as
// commands, drains and decodes device lines, applies them to the session
// and tells observers what changed.
//
// An Engine is not safe for concurrent use. Intents and Poll must be called
// from the same goroutine.
type Engine struct {
	link       Link
	state      *session.State
	conn       ConnState
	port       string
	drainLimit int
	log        *zap.Logger
	now        func() time.Time
	observers  []func(Notification)
}

// New creates a disconnected engine over link.
func New(link Link, opts Options) *Engine {
	e := &Engine{
		link:       link,
		state:      session.New(opts.SampleCapacity),
		drainLimit: opts.DrainLimit,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if e.drainLimit <= 0 {
		e.drainLimit = DefaultDrainLimit
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Subscribe registers fn to receive every notification, in order.
func (e *Engine) Subscribe(fn func(Notification)) {
	e.observers = append(e.observers, fn)
}

// Session exposes the session for rendering.
func (e *Engine) Session() session.View { return e.state }

func (e *Engine) State() ConnState { return e.conn }

// Port returns the connected port name.
func (e *Engine) Port() string {
	if e.conn != Connected {
		return ""
	}
	return e.port
}

// Connected reports whether the engine holds a live connection.
func (e *Engine) Connected() bool {
	return e.conn == Connected && e.link.Connected()
}

// Connect opens port and primes the session: status request, a detect
// for the logic page, and NAND as the default test.
func (e *Engine) Connect(port string, baud int) error {
	e.Disconnect()
	e.setConn(Connecting)
	if err := e.link.Connect(port, baud); err != nil {
		metrics.ConnectionErrors.Inc()
		e.log.Warn("connect failed", zap.String("port", port), zap.Int("baud", baud), zap.Error(err))
		e.setConn(Disconnected)
		e.notify(NoteError, fmt.Sprintf("Connection failed: %v", err))
		return err
	}
	e.port = port
	e.setConn(Connected)
	e.log.Info("connected", zap.String("port", port), zap.Int("baud", baud))
	e.notify(NoteConnection, fmt.Sprintf("Connected to %s @ %d", port, baud))

	_ = e.RequestStatus()
	_ = e.RequestDetect(session.TargetLogic)
	_ = e.SelectTest(protocol.NAND)
	return nil
}

// Disconnect closes the link. Outstanding detect requests are dropped.
func (e *Engine) Disconnect() {
	if e.conn == Disconnected {
		return
	}
	e.link.Close()
	e.state.ClearPendingDetects()
	metrics.PendingDetects.Set(0)
	e.setConn(Disconnected)
	e.log.Info("disconnected", zap.String("port", e.port))
	e.notify(NoteConnection, "Disconnected.")
}

// Poll drains up to the drain limit of lines from the device, dispatching
// each in arrival order. It stops at the first read that yields nothing
// and returns the number of frames handled.
func (e *Engine) Poll() int {
	if e.conn != Connected {
		return 0
	}
	n := 0
	for n < e.drainLimit {
		if e.conn != Connected {
			break
		}
		if !e.link.Connected() {
			e.lost(errors.New("link closed"))
			break
		}
		line, ok, err := e.link.ReadLine()
		if err != nil {
			e.lost(err)
			break
		}
		if !ok {
			break
		}
		e.dispatch(protocol.Decode(line))
		n++
	}
	metrics.PollDrained.Observe(float64(n))
	return n
}

func (e *Engine) lost(err error) {
	metrics.ConnectionErrors.Inc()
	e.log.Error("connection lost", zap.String("port", e.port), zap.Error(err))
	e.link.Close()
	e.state.ClearPendingDetects()
	metrics.PendingDetects.Set(0)
	e.setConn(Disconnected)
	e.notify(NoteError, fmt.Sprintf("Connection lost: %v", err))
}

func (e *Engine) setConn(s ConnState) {
	e.conn = s
	if s == Connected {
		metrics.Connected.Set(1)
	} else {
		metrics.Connected.Set(0)
	}
}

func (e *Engine) requireConnected() error {
	if !e.Connected() {
		e.notify(NoteError, "Not connected to the device.")
		return ErrNotConnected
	}
	return nil
}

func (e *Engine) send(cmd string) error {
	name := commandName(cmd)
	if !e.link.WriteLine(cmd) {
		metrics.CommandsSent.WithLabelValues(name, "error").Inc()
		e.notify(NoteError, "[ERR] failed to send: "+cmd)
		return &SendError{Command: cmd}
	}
	metrics.CommandsSent.WithLabelValues(name, "ok").Inc()
	e.log.Debug("command sent", zap.String("command", name))
	e.notify(NoteSent, "→ "+cmd)
	return nil
}

// commandName keeps metric labels bounded for JSON uploads.
func commandName(cmd string) string {
	if strings.HasPrefix(cmd, "{") {
		return protocol.CmdDefineTest
	}
	return cmd
}

func (e *Engine) notify(kind NoteKind, msg string) {
	n := Notification{Kind: kind, Message: msg, Time: e.now()}
	for _, fn := range e.observers {
		fn(n)
	}
}
