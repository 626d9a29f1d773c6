package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/buckleypaul/dct/internal/metrics"
	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/session"
)

// dispatch applies one frame to the session.
func (e *Engine) dispatch(f protocol.Frame) {
	metrics.FramesDecoded.WithLabelValues(f.Kind()).Inc()

	switch ev := f.(type) {
	case protocol.StatusEvent:
		e.onStatus(ev)
	case protocol.DetectEvent:
		e.onDetect(ev)
	case protocol.VectorEvent:
		e.onVector(ev)
	case protocol.SummaryEvent:
		e.onSummary(ev)
	case protocol.HealthEvent:
		e.onHealth(ev)
	case protocol.PwmSample:
		e.state.RecordPwmSample(ev.Duty, ev.Voltage)
		metrics.PwmSamples.Inc()
		e.notify(NoteSamples, "")
	case protocol.RawText:
		e.notify(NoteLog, ev.Line)
	default:
		e.log.Warn("unhandled frame", zap.String("kind", f.Kind()))
	}
}

func (e *Engine) onStatus(ev protocol.StatusEvent) {
	if ev.MenuIndex == nil {
		return
	}
	idx := *ev.MenuIndex
	e.state.SetMenuIndex(idx)
	e.notify(NoteStatus, fmt.Sprintf("[STATUS] menu %d", idx))

	if kind, ok := protocol.KindFromMenuIndex(idx); ok && kind != e.state.Kind() {
		e.state.SetTestKind(kind)
		e.notify(NoteTestKind, "Device selected "+kind.Label())
	}
}

func (e *Engine) onDetect(ev protocol.DetectEvent) {
	target := e.state.ResolveDetect(ev.ID)
	metrics.PendingDetects.Set(float64(e.state.PendingDetects()))
	e.log.Debug("detect resolved", zap.String("chip", ev.Chip), zap.String("target", string(target)))
	e.notify(NoteDetect, "[DETECT] "+ev.Chip)

	if target == session.TargetOpamp {
		e.state.SetOpampChip(ev.Chip)
		return
	}
	if target == session.TargetNone {
		e.state.SetOpampChip(ev.Chip)
	}
	e.state.SetLogicChip(ev.Chip)

	kind, ok := e.state.ApplyDetectedChip(ev.Chip)
	e.notify(NoteTables, "")
	if !ok {
		return
	}
	if e.Connected() {
		_ = e.send(protocol.Select(kind))
	}
}

func (e *Engine) onVector(ev protocol.VectorEvent) {
	switch e.state.RecordVector(ev.A, ev.B, ev.Y) {
	case session.Updated:
		e.notify(NoteResults, "")
	case session.Dropped:
		metrics.SamplesDropped.Inc()
		e.log.Debug("vector dropped", zap.Ints("inputs", ev.Inputs()), zap.Int("output", ev.Y),
			zap.Stringer("kind", e.state.Kind()))
	}
}

func (e *Engine) onSummary(ev protocol.SummaryEvent) {
	e.state.SetSummary(ev)
	e.state.SetOpampRunning(false)
	e.notify(NoteSummary, fmt.Sprintf("[SUMMARY] %s: %d pass / %d fail (%.1f%%)",
		strings.ToUpper(ev.Test), ev.Passes, ev.Fails, ev.PassRate))
	if e.state.RecordSummaryRows(ev.Rows) > 0 {
		e.notify(NoteResults, "")
	}
}

func (e *Engine) onHealth(ev protocol.HealthEvent) {
	e.state.MergeHealth(ev)
	var parts []string
	for _, f := range []struct {
		name string
		v    *float64
	}{{"min", ev.Min}, {"max", ev.Max}, {"avg", ev.Avg}} {
		if f.v != nil {
			parts = append(parts, fmt.Sprintf("%s=%.2fV", f.name, *f.v))
		}
	}
	e.notify(NoteHealth, "[HEALTH] "+strings.Join(parts, " "))
}
