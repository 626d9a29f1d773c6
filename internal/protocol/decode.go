package protocol

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Text shapes emitted by older firmware:
//
//	A=0 B=1 Y=1
//	A:1, Y:0
//	IN: 0,1 -> OUT: 1
var (
	abyPattern   = regexp.MustCompile(`(?i)\bA\s*[:=]\s*(\d+)\s*[,;]?\s*(?:B\s*[:=]\s*(\d+)\s*[,;]?\s*)?Y\s*[:=]\s*(\d+)`)
	inOutPattern = regexp.MustCompile(`(?i)\bIN\s*[:=]?\s*(\d+)(?:\s*[,\s]\s*(\d+))?\s*(?:->|=>|→)\s*OUT\s*[:=]?\s*(\d+)`)
)

// Decode turns one received line into a Frame. Structured JSON events are
// tried first, then the legacy text shapes; anything else is RawText.
// Decode never panics and never returns nil.
func Decode(line string) Frame {
	trimmed := strings.TrimSpace(line)
	if f, ok := decodeJSON(trimmed); ok {
		return f
	}
	if f, ok := decodeText(trimmed); ok {
		return f
	}
	return RawText{Line: line}
}

func decodeJSON(s string) (Frame, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	// One object per line; trailing content makes the line text.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	o := object(raw)
	tag, _ := o.strField("event")

	switch strings.ToLower(tag) {
	case "status":
		var ev StatusEvent
		if idx, ok := o.intField("menuIndex"); ok {
			ev.MenuIndex = &idx
		}
		return ev, true
	case "detect":
		chip, _ := o.strField("chip")
		if chip == "" {
			chip = "UNKNOWN"
		}
		id, _ := o.strField("id")
		return DetectEvent{Chip: chip, ID: id}, true
	case "vector", "row", "sample", "probe":
		v, ok := vectorFromObject(o)
		if !ok {
			return nil, false
		}
		return v, true
	case "summary":
		ev := SummaryEvent{Test: "?"}
		if name, ok := o.strField("test"); ok && name != "" {
			ev.Test = name
		}
		ev.Passes, _ = o.intField("passes")
		ev.Fails, _ = o.intField("fails")
		ev.PassRate, _ = o.floatField("pass_rate")
		for _, key := range []string{"rows", "observed", "truth_table"} {
			if v, ok := o.lookup(key); ok {
				ev.Rows = rowsFrom(v)
				break
			}
		}
		return ev, true
	case "health":
		var ev HealthEvent
		if v, ok := o.floatField("min_v"); ok {
			ev.Min = &v
		}
		if v, ok := o.floatField("max_v"); ok {
			ev.Max = &v
		}
		if v, ok := o.floatField("avg_v"); ok {
			ev.Avg = &v
		}
		return ev, true
	case "pwm":
		voltage, ok := o.floatField("voltage")
		if !ok {
			return nil, false
		}
		duty, _ := o.intField("duty")
		return PwmSample{Duty: duty, Voltage: voltage}, true
	}
	return nil, false
}

func decodeText(s string) (Frame, bool) {
	for _, re := range []*regexp.Regexp{abyPattern, inOutPattern} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		a, errA := strconv.Atoi(m[1])
		y, errY := strconv.Atoi(m[3])
		if errA != nil || errY != nil {
			continue
		}
		v := VectorEvent{A: a, Y: y}
		if m[2] != "" {
			if b, err := strconv.Atoi(m[2]); err == nil {
				v.B = &b
			}
		}
		return v, true
	}
	return nil, false
}

func vectorFromObject(o object) (VectorEvent, bool) {
	if raw, ok := o.lookup("inputs"); ok {
		ins, ok := intList(raw)
		if !ok || len(ins) == 0 {
			return VectorEvent{}, false
		}
		out, ok := o.intField("output")
		if !ok {
			if out, ok = o.intField("Y"); !ok {
				return VectorEvent{}, false
			}
		}
		return vectorFrom(ins, out), true
	}

	a, okA := o.intField("A")
	y, okY := o.intField("Y")
	if !okY {
		y, okY = o.intField("output")
	}
	if !okA || !okY {
		return VectorEvent{}, false
	}
	v := VectorEvent{A: a, Y: y}
	if b, ok := o.intField("B"); ok {
		v.B = &b
	}
	return v, true
}

func vectorFrom(inputs []int, out int) VectorEvent {
	v := VectorEvent{A: inputs[0], Y: out}
	if len(inputs) > 1 {
		b := inputs[1]
		v.B = &b
	}
	return v
}

// rowsFrom accepts list-of-tuples ([a,b,y], [a,y], [[a,b],y]) and
// list-of-objects shapes. Entries that fit neither are skipped.
func rowsFrom(v any) []VectorEvent {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var rows []VectorEvent
	for _, item := range list {
		switch entry := item.(type) {
		case []any:
			if row, ok := rowFromTuple(entry); ok {
				rows = append(rows, row)
			}
		case map[string]any:
			if row, ok := vectorFromObject(object(entry)); ok {
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func rowFromTuple(t []any) (VectorEvent, bool) {
	if len(t) < 2 {
		return VectorEvent{}, false
	}
	if nested, ok := t[0].([]any); ok {
		ins, ok := intList(nested)
		out, okOut := toInt(t[1])
		if !ok || !okOut || len(ins) == 0 {
			return VectorEvent{}, false
		}
		return vectorFrom(ins, out), true
	}
	vals, ok := intList(t)
	if !ok || len(vals) > 3 {
		return VectorEvent{}, false
	}
	return vectorFrom(vals[:len(vals)-1], vals[len(vals)-1]), true
}

type object map[string]any

func (o object) lookup(key string) (any, bool) {
	if v, ok := o[key]; ok {
		return v, true
	}
	for k, v := range o {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (o object) intField(key string) (int, bool) {
	v, ok := o.lookup(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func (o object) floatField(key string) (float64, bool) {
	v, ok := o.lookup(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func (o object) strField(key string) (string, bool) {
	v, ok := o.lookup(key)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), true
		}
		if f, err := x.Float64(); err == nil && f == math.Trunc(f) {
			return int(f), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return i, true
		}
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toFloat rejects NaN and infinities, which would poison running stats.
func toFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case json.Number:
		f, err = x.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func intList(v any) ([]int, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		i, ok := toInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, i)
	}
	return out, true
}
