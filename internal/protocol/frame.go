package protocol

// Frame is one decoded device line. The set of implementations is closed;
// consumers switch over the concrete types below.
type Frame interface {
	// Kind names the variant for logs and metrics.
	Kind() string
	frame()
}

// StatusEvent reports the device's active menu entry.
type StatusEvent struct {
	MenuIndex *int
}

// DetectEvent reports the chip the device identified. ID echoes the
// request ID when the firmware supports it.
type DetectEvent struct {
	Chip string
	ID   string
}

// VectorEvent is one observed input vector and its output. B is nil for
// single-input (inverter) shapes.
type VectorEvent struct {
	A int
	B *int
	Y int
}

// SummaryEvent closes a test run.
type SummaryEvent struct {
	Test     string
	Passes   int
	Fails    int
	PassRate float64
	Rows     []VectorEvent
}

// HealthEvent carries supply voltage statistics measured on the device.
type HealthEvent struct {
	Min *float64
	Max *float64
	Avg *float64
}

// PwmSample is one op-amp sample: drive duty and measured voltage.
type PwmSample struct {
	Duty    int
	Voltage float64
}

// RawText is any line that did not decode to a structured event.
type RawText struct {
	Line string
}

func (StatusEvent) Kind() string  { return "status" }
func (DetectEvent) Kind() string  { return "detect" }
func (VectorEvent) Kind() string  { return "vector" }
func (SummaryEvent) Kind() string { return "summary" }
func (HealthEvent) Kind() string  { return "health" }
func (PwmSample) Kind() string    { return "pwm" }
func (RawText) Kind() string      { return "raw" }

func (StatusEvent) frame()  {}
func (DetectEvent) frame()  {}
func (VectorEvent) frame()  {}
func (SummaryEvent) frame() {}
func (HealthEvent) frame()  {}
func (PwmSample) frame()    {}
func (RawText) frame()      {}

// Inputs returns the vector's inputs in table order.
func (v VectorEvent) Inputs() []int {
	if v.B == nil {
		return []int{v.A}
	}
	return []int{v.A, *v.B}
}
