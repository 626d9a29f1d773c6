package protocol

import "strings"

// TestKind selects which logic test the device runs.
type TestKind int

const (
	NAND TestKind = iota
	Inverter
)

// Kinds lists the logic tests in device menu order.
var Kinds = []TestKind{NAND, Inverter}

func (k TestKind) String() string {
	switch k {
	case NAND:
		return "nand"
	case Inverter:
		return "inverter"
	}
	return "unknown"
}

// Label is the human-readable name shown for the active test.
func (k TestKind) Label() string {
	switch k {
	case NAND:
		return "NAND Test"
	case Inverter:
		return "Inverter Test"
	}
	return "Unknown Test"
}

// KindFromMenuIndex maps the device's status menuIndex to a kind.
func KindFromMenuIndex(idx int) (TestKind, bool) {
	if idx < 0 || idx >= len(Kinds) {
		return 0, false
	}
	return Kinds[idx], true
}

// ParseKind accepts the wire names ("nand", "inverter") case-insensitively.
func ParseKind(s string) (TestKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nand":
		return NAND, true
	case "inverter", "inv":
		return Inverter, true
	}
	return 0, false
}

// Row is one truth-table entry: the driven inputs and the output level.
type Row struct {
	Inputs []int `json:"inputs" yaml:"inputs"`
	Output int   `json:"output" yaml:"output"`
}

// ExpectedTable returns the fixed truth table for kind in row-major input
// order. Each call returns a fresh slice.
func ExpectedTable(kind TestKind) []Row {
	switch kind {
	case NAND:
		return []Row{
			{Inputs: []int{0, 0}, Output: 1},
			{Inputs: []int{0, 1}, Output: 1},
			{Inputs: []int{1, 0}, Output: 1},
			{Inputs: []int{1, 1}, Output: 0},
		}
	case Inverter:
		return []Row{
			{Inputs: []int{0}, Output: 1},
			{Inputs: []int{1}, Output: 0},
		}
	}
	return nil
}
