package engine

import (
	"fmt"

	"github.com/buckleypaul/dct/internal/metrics"
	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/session"
)

// RequestStatus asks the device for its menu state.
func (e *Engine) RequestStatus() error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	return e.send(protocol.Status())
}

// SelectTest switches the active logic test locally and on the device.
func (e *Engine) SelectTest(kind protocol.TestKind) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.state.SetTestKind(kind)
	e.notify(NoteTestKind, "Selected "+kind.Label())
	return e.send(protocol.Select(kind))
}

// StartTest clears the results grid and starts the uploaded test when one
// is loaded, otherwise the built-in test for the active kind.
func (e *Engine) StartTest() error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.state.ClearResults()
	e.notify(NoteResults, "")
	if e.state.DefinitionLoaded() {
		return e.send(protocol.StartLoaded())
	}
	return e.send(protocol.Start(e.state.Kind()))
}

// StartOpamp resets the running statistics and starts the op-amp sweep.
func (e *Engine) StartOpamp() error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.state.ResetOpampStats()
	e.notify(NoteSamples, "")
	if err := e.send(protocol.StartOpamp()); err != nil {
		return err
	}
	e.state.SetOpampRunning(true)
	return nil
}

func (e *Engine) StopTest() error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	if err := e.send(protocol.Stop()); err != nil {
		return err
	}
	e.state.SetOpampRunning(false)
	return nil
}

func (e *Engine) ResetTest() error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	return e.send(protocol.Reset())
}

// RequestDetect asks the device to identify the inserted chip. The
// response is routed to target.
func (e *Engine) RequestDetect(target session.Target) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	tok := e.state.BeginDetect(target)
	if err := e.send(protocol.Detect()); err != nil {
		e.state.ResolveDetect(tok.ID)
		return err
	}
	metrics.PendingDetects.Set(float64(e.state.PendingDetects()))
	return nil
}

// UploadDefinition sends def as a define_test command. Once accepted,
// StartTest runs the uploaded test.
func (e *Engine) UploadDefinition(def protocol.TestDefinition) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	line, err := protocol.DefineTest(def)
	if err != nil {
		e.notify(NoteError, fmt.Sprintf("Invalid test definition: %v", err))
		return fmt.Errorf("building define_test: %w", err)
	}
	if err := e.send(line); err != nil {
		return err
	}
	e.state.NoteDefinitionUploaded()
	e.notify(NoteDefinition, fmt.Sprintf("Loaded test %q for %s", def.Name, def.Chip))
	return nil
}
