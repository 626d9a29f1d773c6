// Package testdef loads chip test definitions from YAML files.
package testdef

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/buckleypaul/dct/internal/protocol"
)

var (
	ErrNoChip = errors.New("test definition has no chip")
	ErrNoRows = errors.New("test definition has no rows")
)

type file struct {
	Name       string         `yaml:"name"`
	Chip       string         `yaml:"chip"`
	Mode       string         `yaml:"mode"`
	Type       string         `yaml:"type"`
	Pins       map[string]int `yaml:"pins"`
	Rows       []protocol.Row `yaml:"rows"`
	TruthTable []protocol.Row `yaml:"truth_table"`
	SettleMS   int            `yaml:"settle_ms"`
}

// Load reads the definition at path. `truth_table` is accepted in place of
// `rows` and `type` in place of `mode`.
func Load(path string) (protocol.TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return protocol.TestDefinition{}, fmt.Errorf("reading %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return protocol.TestDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes and validates a YAML test definition.
func Parse(data []byte) (protocol.TestDefinition, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return protocol.TestDefinition{}, fmt.Errorf("parsing yaml: %w", err)
	}

	def := protocol.TestDefinition{
		Name:     strings.TrimSpace(f.Name),
		Chip:     strings.TrimSpace(f.Chip),
		Mode:     strings.TrimSpace(f.Mode),
		Pins:     f.Pins,
		Rows:     f.Rows,
		SettleMS: f.SettleMS,
	}
	if def.Mode == "" {
		def.Mode = strings.TrimSpace(f.Type)
	}
	if len(def.Rows) == 0 {
		def.Rows = f.TruthTable
	}
	if def.Name == "" {
		def.Name = def.Chip
	}

	if def.Chip == "" {
		return protocol.TestDefinition{}, ErrNoChip
	}
	if len(def.Rows) == 0 {
		return protocol.TestDefinition{}, ErrNoRows
	}
	for i, r := range def.Rows {
		if len(r.Inputs) == 0 {
			return protocol.TestDefinition{}, fmt.Errorf("row %d: no inputs", i)
		}
	}
	return def, nil
}
