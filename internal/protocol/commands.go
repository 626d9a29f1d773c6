package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Command words understood by the device firmware.
const (
	CmdStatus      = "status"
	CmdDetect      = "detect"
	CmdStartLoaded = "start_loaded"
	CmdStartOpamp  = "start_opamp"
	CmdStop        = "stop"
	CmdReset       = "reset"
	CmdDefineTest  = "define_test"

	selectPrefix = "select_"
	startPrefix  = "start_"
)

// TestDefinition is an uploaded test: pin map, rows to drive and the
// settle time between vectors.
type TestDefinition struct {
	Name     string         `json:"name" yaml:"name"`
	Chip     string         `json:"chip" yaml:"chip"`
	Mode     string         `json:"mode" yaml:"mode"`
	Pins     map[string]int `json:"pins" yaml:"pins"`
	Rows     []Row          `json:"rows" yaml:"rows"`
	SettleMS int            `json:"settle_ms" yaml:"settle_ms"`
}

func Status() string      { return CmdStatus }
func Detect() string      { return CmdDetect }
func StartLoaded() string { return CmdStartLoaded }
func StartOpamp() string  { return CmdStartOpamp }
func Stop() string        { return CmdStop }
func Reset() string       { return CmdReset }

// Select builds the select_<kind> command.
func Select(kind TestKind) string { return selectPrefix + kind.String() }

// Start builds the start_<kind> command for a built-in test.
func Start(kind TestKind) string { return startPrefix + kind.String() }

// KindFromCommand recovers the kind from a select_ or start_ command.
func KindFromCommand(cmd string) (TestKind, bool) {
	cmd = strings.TrimSpace(cmd)
	for _, prefix := range []string{selectPrefix, startPrefix} {
		if rest, ok := strings.CutPrefix(cmd, prefix); ok {
			return ParseKind(rest)
		}
	}
	return 0, false
}

type defineTestCommand struct {
	Cmd      string         `json:"cmd"`
	Mode     string         `json:"mode"`
	Chip     string         `json:"chip"`
	Name     string         `json:"name"`
	Pins     map[string]int `json:"pins"`
	Rows     []Row          `json:"rows"`
	SettleMS int            `json:"settle_ms"`
}

// DefineTest serializes def into the single-line define_test upload.
func DefineTest(def TestDefinition) (string, error) {
	if def.Chip == "" {
		return "", errors.New("test definition has no chip")
	}
	if len(def.Rows) == 0 {
		return "", errors.New("test definition has no rows")
	}
	cmd := defineTestCommand{
		Cmd:      CmdDefineTest,
		Mode:     def.Mode,
		Chip:     def.Chip,
		Name:     def.Name,
		Pins:     def.Pins,
		Rows:     def.Rows,
		SettleMS: def.SettleMS,
	}
	if cmd.Pins == nil {
		cmd.Pins = map[string]int{}
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encoding define_test: %w", err)
	}
	return string(data), nil
}
