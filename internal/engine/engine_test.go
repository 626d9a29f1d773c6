package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/dct/internal/protocol"
	"github.com/buckleypaul/dct/internal/session"
)

func intp(v int) *int { return &v }

func newConnected(t *testing.T) (*Engine, *fakeLink, *[]Notification) {
	t.Helper()
	link := &fakeLink{}
	e := New(link, Options{})
	var notes []Notification
	e.Subscribe(func(n Notification) { notes = append(notes, n) })
	require.NoError(t, e.Connect("/dev/ttyACM0", 9600))
	return e, link, &notes
}

func outputs(cells []session.Cell) []*int {
	out := make([]*int, len(cells))
	for i, c := range cells {
		out[i] = c.Output
	}
	return out
}

func hasNote(notes []Notification, kind NoteKind, msg string) bool {
	for _, n := range notes {
		if n.Kind == kind && (msg == "" || n.Message == msg) {
			return true
		}
	}
	return false
}

func TestConnectPrimesSession(t *testing.T) {
	e, link, notes := newConnected(t)

	assert.Equal(t, Connected, e.State())
	assert.Equal(t, "/dev/ttyACM0", e.Port())
	assert.Equal(t, []string{"status", "detect", "select_nand"}, link.writes)
	assert.Equal(t, protocol.NAND, e.Session().Kind())
	assert.Equal(t, 1, e.Session().PendingDetects())
	assert.True(t, hasNote(*notes, NoteConnection, "Connected to /dev/ttyACM0 @ 9600"))
}

func TestConnectFailure(t *testing.T) {
	link := &fakeLink{connectErr: errors.New("permission denied")}
	e := New(link, Options{})
	var notes []Notification
	e.Subscribe(func(n Notification) { notes = append(notes, n) })

	err := e.Connect("/dev/ttyACM0", 9600)
	require.Error(t, err)
	assert.Equal(t, Disconnected, e.State())
	assert.Empty(t, link.writes)
	assert.True(t, hasNote(notes, NoteError, "Connection failed: permission denied"))
}

func TestDetectSelectsNAND(t *testing.T) {
	e, link, _ := newConnected(t)
	require.NoError(t, e.SelectTest(protocol.Inverter))
	link.writes = nil

	link.feed(`{"event":"detect","chip":"74F00"}`)
	assert.Equal(t, 1, e.Poll())

	assert.Equal(t, protocol.NAND, e.Session().Kind())
	assert.Equal(t, []protocol.Row{
		{Inputs: []int{0, 0}, Output: 1},
		{Inputs: []int{0, 1}, Output: 1},
		{Inputs: []int{1, 0}, Output: 1},
		{Inputs: []int{1, 1}, Output: 0},
	}, e.Session().Expected())
	assert.Equal(t, []string{"select_nand"}, link.writes)
	assert.Equal(t, "74F00", e.Session().LogicChip())
	assert.Equal(t, 0, e.Session().PendingDetects())
}

func TestDetectUnknownClearsTables(t *testing.T) {
	e, link, _ := newConnected(t)
	link.writes = nil

	link.feed(`{"event":"detect","chip":"LM358"}`)
	e.Poll()

	assert.Empty(t, e.Session().Expected())
	assert.Empty(t, e.Session().Results())
	assert.Empty(t, link.writes)
}

func TestTextVectorInInverterMode(t *testing.T) {
	e, link, _ := newConnected(t)
	require.NoError(t, e.SelectTest(protocol.Inverter))

	link.feed("A:1, Y:0")
	e.Poll()

	assert.Equal(t, []*int{nil, intp(0)}, outputs(e.Session().Results()))
}

func TestPollDrainsBounded(t *testing.T) {
	e, link, _ := newConnected(t)
	assert.Equal(t, 0, e.Poll())

	for i := 0; i < 60; i++ {
		link.feed(fmt.Sprintf("log line %d", i))
	}
	assert.Equal(t, DefaultDrainLimit, e.Poll())
	assert.Equal(t, 10, e.Poll())
	assert.Equal(t, 0, e.Poll())
}

func TestPollPreservesOrder(t *testing.T) {
	e, link, notes := newConnected(t)
	*notes = nil

	link.feed("first", "second", "third")
	e.Poll()

	var logs []string
	for _, n := range *notes {
		if n.Kind == NoteLog {
			logs = append(logs, n.Message)
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, logs)
}

func TestDetectResponsesResolveInRequestOrder(t *testing.T) {
	e, link, _ := newConnected(t)
	link.feed(`{"event":"detect","chip":"74F00"}`)
	e.Poll()

	require.NoError(t, e.RequestDetect(session.TargetLogic))
	require.NoError(t, e.RequestDetect(session.TargetOpamp))
	assert.Equal(t, 2, e.Session().PendingDetects())

	link.feed(`{"event":"detect","chip":"74HC04"}`, `{"event":"detect","chip":"LM358"}`)
	e.Poll()

	assert.Equal(t, "74HC04", e.Session().LogicChip())
	assert.Equal(t, protocol.Inverter, e.Session().Kind())
	assert.Equal(t, "LM358", e.Session().OpampChip())
	assert.NotEmpty(t, e.Session().Expected())
}

func TestUnsolicitedDetectUpdatesBothPages(t *testing.T) {
	e, link, _ := newConnected(t)
	link.feed(`{"event":"detect","chip":"74F00"}`)
	e.Poll()
	require.Equal(t, 0, e.Session().PendingDetects())

	link.feed(`{"event":"detect","chip":"74HC14"}`)
	e.Poll()
	assert.Equal(t, "74HC14", e.Session().LogicChip())
	assert.Equal(t, "74HC14", e.Session().OpampChip())
	assert.Equal(t, protocol.Inverter, e.Session().Kind())
}

func TestIntentsRequireConnection(t *testing.T) {
	link := &fakeLink{}
	e := New(link, Options{})
	var notes []Notification
	e.Subscribe(func(n Notification) { notes = append(notes, n) })

	intents := map[string]func() error{
		"select": func() error { return e.SelectTest(protocol.Inverter) },
		"start":  e.StartTest,
		"opamp":  e.StartOpamp,
		"stop":   e.StopTest,
		"reset":  e.ResetTest,
		"status": e.RequestStatus,
		"detect": func() error { return e.RequestDetect(session.TargetLogic) },
		"upload": func() error {
			return e.UploadDefinition(protocol.TestDefinition{Chip: "74HC00", Rows: protocol.ExpectedTable(protocol.NAND)})
		},
	}
	for name, fn := range intents {
		assert.ErrorIs(t, fn(), ErrNotConnected, name)
	}
	assert.Empty(t, link.writes)
	assert.Equal(t, protocol.NAND, e.Session().Kind())
	assert.Equal(t, 0, e.Session().PendingDetects())
	assert.True(t, hasNote(notes, NoteError, "Not connected to the device."))
}

func TestStartTestChoosesCommand(t *testing.T) {
	e, link, _ := newConnected(t)
	require.NoError(t, e.SelectTest(protocol.Inverter))
	link.feed("A:0, Y:1")
	e.Poll()
	link.writes = nil

	require.NoError(t, e.StartTest())
	assert.Equal(t, []string{"start_inverter"}, link.writes)
	assert.Equal(t, []*int{nil, nil}, outputs(e.Session().Results()))

	def := protocol.TestDefinition{
		Name:     "inv",
		Chip:     "74HC04",
		Mode:     "logic",
		Pins:     map[string]int{"A": 1, "Y": 2},
		Rows:     protocol.ExpectedTable(protocol.Inverter),
		SettleMS: 10,
	}
	require.NoError(t, e.UploadDefinition(def))
	require.NoError(t, e.StartTest())

	require.Len(t, link.writes, 3)
	want, err := protocol.DefineTest(def)
	require.NoError(t, err)
	assert.Equal(t, want, link.writes[1])
	assert.Equal(t, "start_loaded", link.writes[2])
}

func TestInvalidDefinitionNotSent(t *testing.T) {
	e, link, _ := newConnected(t)
	link.writes = nil

	err := e.UploadDefinition(protocol.TestDefinition{Name: "empty"})
	require.Error(t, err)
	assert.Empty(t, link.writes)
	assert.False(t, e.Session().DefinitionLoaded())
}

func TestOpampRun(t *testing.T) {
	e, link, _ := newConnected(t)
	link.feed(
		`{"event":"pwm","duty":10,"voltage":1.0}`,
		`{"event":"pwm","duty":20,"voltage":3.0}`,
	)
	e.Poll()
	require.Equal(t, 2, e.Session().Stats().Count)
	link.writes = nil

	require.NoError(t, e.StartOpamp())
	assert.Equal(t, []string{"start_opamp"}, link.writes)
	assert.True(t, e.Session().OpampRunning())
	assert.Equal(t, 0, e.Session().Stats().Count)

	link.feed(
		`{"event":"pwm","duty":10,"voltage":1.0}`,
		`{"event":"pwm","duty":20,"voltage":3.0}`,
		`{"event":"pwm","duty":30,"voltage":2.0}`,
		`{"event":"summary","test":"opamp","passes":1,"fails":0,"pass_rate":100}`,
	)
	e.Poll()

	st := e.Session().Stats()
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 1.0, st.Min, 1e-9)
	assert.InDelta(t, 3.0, st.Max, 1e-9)
	assert.InDelta(t, 2.0, st.Avg(), 1e-9)
	assert.Len(t, e.Session().Samples(), 3)
	assert.False(t, e.Session().OpampRunning())
}

func TestNonFiniteVoltageLeavesStatsIntact(t *testing.T) {
	e, link, notes := newConnected(t)
	nan := `{"event":"pwm","duty":20,"voltage":"NaN"}`
	link.feed(
		`{"event":"pwm","duty":10,"voltage":1.0}`,
		nan,
		`{"event":"pwm","duty":30,"voltage":"-Inf"}`,
		`{"event":"pwm","duty":40,"voltage":3.0}`,
	)
	e.Poll()

	st := e.Session().Stats()
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 1.0, st.Min, 1e-9)
	assert.InDelta(t, 3.0, st.Max, 1e-9)
	assert.InDelta(t, 2.0, st.Avg(), 1e-9)
	assert.Len(t, e.Session().Samples(), 2)
	assert.True(t, hasNote(*notes, NoteLog, nan))
}

func TestStatusSyncsKindWithoutCommand(t *testing.T) {
	e, link, _ := newConnected(t)
	link.writes = nil

	link.feed(`{"event":"status","menuIndex":1}`, `{"event":"status"}`, `{"event":"status","menuIndex":7}`)
	e.Poll()

	assert.Equal(t, protocol.Inverter, e.Session().Kind())
	idx, ok := e.Session().MenuIndex()
	assert.True(t, ok)
	assert.Equal(t, 7, idx)
	assert.Empty(t, link.writes)
}

func TestSummaryRowsFillGrid(t *testing.T) {
	e, link, notes := newConnected(t)
	link.feed(`{"event":"summary","test":"nand","passes":4,"fails":0,"pass_rate":100.0,"rows":[{"A":0,"B":0,"Y":1},{"A":0,"B":1,"Y":1},{"A":1,"B":0,"Y":1},{"A":1,"B":1,"Y":0}]}`)
	e.Poll()

	assert.Equal(t, []*int{intp(1), intp(1), intp(1), intp(0)}, outputs(e.Session().Results()))
	sum, ok := e.Session().Summary()
	require.True(t, ok)
	assert.Equal(t, 4, sum.Passes)
	assert.True(t, hasNote(*notes, NoteSummary, "[SUMMARY] NAND: 4 pass / 0 fail (100.0%)"))
}

func TestHealthMerged(t *testing.T) {
	e, link, notes := newConnected(t)
	link.feed(`{"event":"health","min_v":4.9,"max_v":5.1}`)
	e.Poll()

	h := e.Session().Health()
	require.NotNil(t, h.Min)
	assert.InDelta(t, 4.9, *h.Min, 1e-9)
	assert.Nil(t, h.Avg)
	assert.True(t, hasNote(*notes, NoteHealth, "[HEALTH] min=4.90V max=5.10V"))
}

func TestReadErrorDisconnects(t *testing.T) {
	e, link, notes := newConnected(t)
	link.feed("one")
	link.readErr = errUnplugged

	assert.Equal(t, 1, e.Poll())
	assert.Equal(t, Disconnected, e.State())
	assert.Equal(t, 0, e.Session().PendingDetects())
	assert.True(t, hasNote(*notes, NoteError, "Connection lost: device unplugged"))

	assert.Equal(t, 0, e.Poll())
	assert.ErrorIs(t, e.StartTest(), ErrNotConnected)
}

func TestDisconnectMidDrain(t *testing.T) {
	e, link, _ := newConnected(t)
	e.Subscribe(func(n Notification) {
		if n.Kind == NoteLog && n.Message == "bye" {
			e.Disconnect()
		}
	})
	link.feed("hello", "bye", "never read")

	assert.Equal(t, 2, e.Poll())
	assert.Equal(t, Disconnected, e.State())
	assert.Equal(t, 1, link.closeCalls)

	require.NoError(t, e.Connect("/dev/ttyACM0", 9600))
	assert.Equal(t, Connected, e.State())
}

func TestSendFailureRollsBackDetect(t *testing.T) {
	e, link, notes := newConnected(t)
	link.feed(`{"event":"detect","chip":"74F00"}`)
	e.Poll()
	link.failWrites = true

	err := e.RequestDetect(session.TargetOpamp)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "detect", se.Command)
	assert.Equal(t, 0, e.Session().PendingDetects())
	assert.True(t, hasNote(*notes, NoteError, "[ERR] failed to send: detect"))
}

func TestDroppedVectorLeavesGrid(t *testing.T) {
	e, link, notes := newConnected(t)
	*notes = nil
	link.feed(`{"event":"vector","A":1,"Y":0}`)
	e.Poll()

	assert.Equal(t, []*int{nil, nil, nil, nil}, outputs(e.Session().Results()))
	assert.False(t, hasNote(*notes, NoteResults, ""))
}
