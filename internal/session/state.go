package session

import (
	"slices"

	"github.com/google/uuid"

	"github.com/buckleypaul/dct/internal/protocol"
)

// Target names the page a detect request was issued for.
type Target string

const (
	TargetNone  Target = ""
	TargetLogic Target = "logic"
	TargetOpamp Target = "opamp"
)

// MaxPendingDetects bounds the correlation queue. When the device never
// answers, the oldest request is forgotten first.
const MaxPendingDetects = 8

// Token correlates one outstanding detect request with its target page.
type Token struct {
	ID     string
	Target Target
}

// Cell is one row of the results grid. Output is nil until the device
// reports the row.
type Cell struct {
	Inputs []int
	Output *int
}

// Outcome reports what RecordVector did with a sample.
type Outcome int

const (
	Dropped Outcome = iota
	Unchanged
	Updated
)

// View is the read-only surface of State offered to observers.
type View interface {
	Kind() protocol.TestKind
	CurrentTest() string
	Expected() []protocol.Row
	Results() []Cell
	DefinitionLoaded() bool
	LogicChip() string
	OpampChip() string
	OpampRunning() bool
	Stats() Stats
	Samples() []Sample
	LastSample() (Sample, bool)
	PendingDetects() int
	Health() protocol.HealthEvent
	MenuIndex() (int, bool)
	Summary() (protocol.SummaryEvent, bool)
}

// State is the client-side model of the device session. It is owned by a
// single engine and is not safe for concurrent use.
type State struct {
	kind        protocol.TestKind
	currentTest string
	expected    []protocol.Row
	results     []Cell

	pending          []Token
	definitionLoaded bool

	logicChip string
	opampChip string
	menuIndex *int
	summary   *protocol.SummaryEvent
	health    protocol.HealthEvent

	opampRunning bool
	samples      *Ring
	stats        Stats
}

// New creates a session with NAND selected and room for sampleCapacity
// PWM samples.
func New(sampleCapacity int) *State {
	s := &State{samples: NewRing(sampleCapacity)}
	s.SetTestKind(protocol.NAND)
	return s
}

// SetTestKind switches the active logic test, regenerating the expected
// table and blanking the results grid.
func (s *State) SetTestKind(kind protocol.TestKind) {
	s.kind = kind
	s.currentTest = kind.Label()
	s.expected = protocol.ExpectedTable(kind)
	s.ClearResults()
}

// ApplyDetectedChip selects the test matching a detected part. Unknown
// parts clear both tables and leave the kind untouched.
func (s *State) ApplyDetectedChip(label string) (protocol.TestKind, bool) {
	kind, ok := ClassifyChip(label)
	if !ok {
		s.expected = nil
		s.results = nil
		return 0, false
	}
	s.SetTestKind(kind)
	return kind, true
}

// ClearResults blanks every output cell of the results grid.
func (s *State) ClearResults() {
	s.results = make([]Cell, len(s.expected))
	for i, row := range s.expected {
		s.results[i] = Cell{Inputs: slices.Clone(row.Inputs)}
	}
}

// RecordVector stores an observed output in the row whose inputs match.
// Samples whose shape does not fit the active kind are dropped.
func (s *State) RecordVector(a int, b *int, y int) Outcome {
	inputs := []int{a}
	if b != nil {
		inputs = append(inputs, *b)
	}
	for i := range s.results {
		cell := &s.results[i]
		if !slices.Equal(cell.Inputs, inputs) {
			continue
		}
		if cell.Output != nil && *cell.Output == y {
			return Unchanged
		}
		out := y
		cell.Output = &out
		return Updated
	}
	return Dropped
}

// RecordSummaryRows applies each row as RecordVector would and returns the
// number of cells that changed.
func (s *State) RecordSummaryRows(rows []protocol.VectorEvent) int {
	updated := 0
	for _, r := range rows {
		if s.RecordVector(r.A, r.B, r.Y) == Updated {
			updated++
		}
	}
	return updated
}

// RecordPwmSample appends to the sample window and updates the running
// statistics.
func (s *State) RecordPwmSample(duty int, voltage float64) {
	s.samples.Push(Sample{Duty: duty, Voltage: voltage})
	s.stats.Add(voltage)
}

// ResetOpampStats zeroes the statistics and empties the sample window.
func (s *State) ResetOpampStats() {
	s.stats = Stats{}
	s.samples.Reset()
}

// BeginDetect queues a correlation token for a detect request.
func (s *State) BeginDetect(target Target) Token {
	tok := Token{ID: uuid.NewString(), Target: target}
	s.pending = append(s.pending, tok)
	if len(s.pending) > MaxPendingDetects {
		s.pending = s.pending[len(s.pending)-MaxPendingDetects:]
	}
	return tok
}

// ResolveDetect consumes the token for a detect response. A response that
// echoes a known request ID resolves that request; otherwise the oldest
// pending request is resolved. It returns TargetNone when nothing is
// pending.
func (s *State) ResolveDetect(id string) Target {
	if len(s.pending) == 0 {
		return TargetNone
	}
	idx := 0
	if id != "" {
		if i := slices.IndexFunc(s.pending, func(t Token) bool { return t.ID == id }); i >= 0 {
			idx = i
		}
	}
	target := s.pending[idx].Target
	s.pending = slices.Delete(s.pending, idx, idx+1)
	return target
}

// ClearPendingDetects forgets every outstanding detect request.
func (s *State) ClearPendingDetects() { s.pending = nil }

func (s *State) NoteDefinitionUploaded() { s.definitionLoaded = true }

func (s *State) SetLogicChip(label string) { s.logicChip = label }
func (s *State) SetOpampChip(label string) { s.opampChip = label }
func (s *State) SetOpampRunning(on bool)   { s.opampRunning = on }

// SetMenuIndex records the device's reported menu entry.
func (s *State) SetMenuIndex(idx int) { s.menuIndex = &idx }

// SetSummary stores the latest run summary without its rows.
func (s *State) SetSummary(ev protocol.SummaryEvent) {
	ev.Rows = nil
	s.summary = &ev
}

// MergeHealth overwrites only the fields present in ev.
func (s *State) MergeHealth(ev protocol.HealthEvent) {
	if ev.Min != nil {
		s.health.Min = ev.Min
	}
	if ev.Max != nil {
		s.health.Max = ev.Max
	}
	if ev.Avg != nil {
		s.health.Avg = ev.Avg
	}
}

func (s *State) Kind() protocol.TestKind { return s.kind }
func (s *State) CurrentTest() string     { return s.currentTest }
func (s *State) DefinitionLoaded() bool  { return s.definitionLoaded }
func (s *State) LogicChip() string       { return s.logicChip }
func (s *State) OpampChip() string       { return s.opampChip }
func (s *State) OpampRunning() bool      { return s.opampRunning }
func (s *State) Stats() Stats            { return s.stats }
func (s *State) Samples() []Sample       { return s.samples.Samples() }
func (s *State) PendingDetects() int     { return len(s.pending) }
func (s *State) Health() protocol.HealthEvent {
	return s.health
}

// MenuIndex returns the last menu index the device reported.
func (s *State) MenuIndex() (int, bool) {
	if s.menuIndex == nil {
		return 0, false
	}
	return *s.menuIndex, true
}

// Summary returns the last run summary, if any.
func (s *State) Summary() (protocol.SummaryEvent, bool) {
	if s.summary == nil {
		return protocol.SummaryEvent{}, false
	}
	return *s.summary, true
}

// Expected returns a copy of the expected truth table.
func (s *State) Expected() []protocol.Row {
	out := make([]protocol.Row, len(s.expected))
	for i, r := range s.expected {
		out[i] = protocol.Row{Inputs: slices.Clone(r.Inputs), Output: r.Output}
	}
	return out
}

// Results returns a copy of the results grid.
func (s *State) Results() []Cell {
	out := make([]Cell, len(s.results))
	for i, c := range s.results {
		out[i] = Cell{Inputs: slices.Clone(c.Inputs)}
		if c.Output != nil {
			v := *c.Output
			out[i].Output = &v
		}
	}
	return out
}

// LastSample returns the most recent PWM sample, if any.
func (s *State) LastSample() (Sample, bool) {
	return s.samples.Last()
}
