package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/dct/internal/protocol"
)

func intp(v int) *int { return &v }

func outputs(cells []Cell) []*int {
	out := make([]*int, len(cells))
	for i, c := range cells {
		out[i] = c.Output
	}
	return out
}

func TestNewSelectsNAND(t *testing.T) {
	s := New(0)
	assert.Equal(t, protocol.NAND, s.Kind())
	assert.Equal(t, "NAND Test", s.CurrentTest())
	assert.Equal(t, protocol.ExpectedTable(protocol.NAND), s.Expected())
	require.Len(t, s.Results(), 4)
	for _, c := range s.Results() {
		assert.Nil(t, c.Output)
	}
}

func TestSetTestKindResetsResults(t *testing.T) {
	s := New(0)
	require.Equal(t, Updated, s.RecordVector(1, intp(1), 0))

	s.SetTestKind(protocol.Inverter)
	assert.Equal(t, "Inverter Test", s.CurrentTest())
	assert.Equal(t, protocol.ExpectedTable(protocol.Inverter), s.Expected())
	assert.Equal(t, []*int{nil, nil}, outputs(s.Results()))
}

func TestApplyDetectedChip(t *testing.T) {
	tests := []struct {
		label string
		kind  protocol.TestKind
	}{
		{"74F00", protocol.NAND},
		{"74LS00", protocol.NAND},
		{"74HC00", protocol.NAND},
		{"sn74hct00n", protocol.NAND},
		{"CD4011BE", protocol.NAND},
		{"74HC04", protocol.Inverter},
		{"74LS14", protocol.Inverter},
		{"SN74AHC04", protocol.Inverter},
		{"CD4069", protocol.Inverter},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			s := New(0)
			if tt.kind == protocol.NAND {
				s.SetTestKind(protocol.Inverter)
			}
			kind, ok := s.ApplyDetectedChip(tt.label)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.kind, s.Kind())
			assert.Equal(t, protocol.ExpectedTable(tt.kind), s.Expected())
			assert.Len(t, s.Results(), len(protocol.ExpectedTable(tt.kind)))
		})
	}
}

func TestApplyDetectedChipUnknownClearsTables(t *testing.T) {
	for _, label := range []string{"UNKNOWN", "LM358", "", "74HC4011"} {
		s := New(0)
		s.SetTestKind(protocol.Inverter)
		_, ok := s.ApplyDetectedChip(label)
		assert.False(t, ok, label)
		assert.Empty(t, s.Expected(), label)
		assert.Empty(t, s.Results(), label)
		assert.Equal(t, protocol.Inverter, s.Kind(), label)
	}
}

func TestRecordVectorIdempotent(t *testing.T) {
	s := New(0)
	assert.Equal(t, Updated, s.RecordVector(0, intp(1), 1))
	before := s.Results()
	assert.Equal(t, Unchanged, s.RecordVector(0, intp(1), 1))
	assert.Equal(t, before, s.Results())

	assert.Equal(t, Updated, s.RecordVector(0, intp(1), 0))
	got := s.Results()
	require.NotNil(t, got[1].Output)
	assert.Equal(t, 0, *got[1].Output)
	assert.Equal(t, []*int{nil, intp(0), nil, nil}, outputs(got))
}

func TestRecordVectorDropsWrongShape(t *testing.T) {
	s := New(0)
	assert.Equal(t, Dropped, s.RecordVector(1, nil, 0))
	assert.Equal(t, Dropped, s.RecordVector(2, intp(0), 1))

	s.SetTestKind(protocol.Inverter)
	assert.Equal(t, Dropped, s.RecordVector(1, intp(1), 0))
	assert.Equal(t, Updated, s.RecordVector(1, nil, 0))
	assert.Equal(t, []*int{nil, intp(0)}, outputs(s.Results()))
}

func TestRecordSummaryRows(t *testing.T) {
	s := New(0)
	n := s.RecordSummaryRows([]protocol.VectorEvent{
		{A: 0, B: intp(0), Y: 1},
		{A: 0, B: intp(1), Y: 1},
		{A: 1, B: intp(0), Y: 1},
		{A: 1, B: intp(1), Y: 1},
		{A: 1, Y: 1},
	})
	assert.Equal(t, 4, n)
	assert.Equal(t, []*int{intp(1), intp(1), intp(1), intp(1)}, outputs(s.Results()))
}

func TestResultsAreCopies(t *testing.T) {
	s := New(0)
	s.RecordVector(0, intp(0), 1)
	got := s.Results()
	*got[0].Output = 0
	got[0].Inputs[0] = 9
	fresh := s.Results()
	assert.Equal(t, 1, *fresh[0].Output)
	assert.Equal(t, []int{0, 0}, fresh[0].Inputs)
}

func TestPwmStats(t *testing.T) {
	s := New(0)
	for _, v := range []float64{1.0, 3.0, 2.0} {
		s.RecordPwmSample(100, v)
	}
	st := s.Stats()
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 1.0, st.Min, 1e-9)
	assert.InDelta(t, 3.0, st.Max, 1e-9)
	assert.InDelta(t, 2.0, st.Avg(), 1e-9)
	assert.Len(t, s.Samples(), 3)
	last, ok := s.LastSample()
	require.True(t, ok)
	assert.InDelta(t, 2.0, last.Voltage, 1e-9)

	s.ResetOpampStats()
	assert.Equal(t, Stats{}, s.Stats())
	assert.Empty(t, s.Samples())
	_, ok = s.LastSample()
	assert.False(t, ok)
}

func TestDetectCorrelationFIFO(t *testing.T) {
	s := New(0)
	assert.Equal(t, TargetNone, s.ResolveDetect(""))

	s.BeginDetect(TargetLogic)
	s.BeginDetect(TargetOpamp)
	assert.Equal(t, 2, s.PendingDetects())

	assert.Equal(t, TargetLogic, s.ResolveDetect(""))
	assert.Equal(t, TargetOpamp, s.ResolveDetect(""))
	assert.Equal(t, TargetNone, s.ResolveDetect(""))
	assert.Equal(t, 0, s.PendingDetects())
}

func TestDetectCorrelationByID(t *testing.T) {
	s := New(0)
	s.BeginDetect(TargetLogic)
	opamp := s.BeginDetect(TargetOpamp)
	require.NotEmpty(t, opamp.ID)

	assert.Equal(t, TargetOpamp, s.ResolveDetect(opamp.ID))
	assert.Equal(t, TargetLogic, s.ResolveDetect("not-a-known-id"))
}

func TestDetectCorrelationBounded(t *testing.T) {
	s := New(0)
	s.BeginDetect(TargetOpamp)
	for i := 0; i < MaxPendingDetects; i++ {
		s.BeginDetect(TargetLogic)
	}
	assert.Equal(t, MaxPendingDetects, s.PendingDetects())
	assert.Equal(t, TargetLogic, s.ResolveDetect(""))
}

func TestMergeHealthKeepsAbsentFields(t *testing.T) {
	s := New(0)
	lo, hi := 4.8, 5.2
	s.MergeHealth(protocol.HealthEvent{Min: &lo, Max: &hi})
	avg := 5.0
	s.MergeHealth(protocol.HealthEvent{Avg: &avg})
	h := s.Health()
	require.NotNil(t, h.Min)
	require.NotNil(t, h.Max)
	require.NotNil(t, h.Avg)
	assert.InDelta(t, 4.8, *h.Min, 1e-9)
	assert.InDelta(t, 5.0, *h.Avg, 1e-9)
}

func TestDefinitionFlag(t *testing.T) {
	s := New(0)
	assert.False(t, s.DefinitionLoaded())
	s.NoteDefinitionUploaded()
	assert.True(t, s.DefinitionLoaded())
}
