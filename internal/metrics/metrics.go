package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Device -> host
	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dct_frames_decoded_total",
		Help: "Lines received from the device, by decoded frame kind",
	}, []string{"kind"})

	SamplesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dct_samples_dropped_total",
		Help: "Vector samples that matched no row of the active truth table",
	})

	PwmSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dct_pwm_samples_total",
		Help: "Op-amp PWM samples recorded",
	})

	PollDrained = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dct_poll_drained_lines",
		Help:    "Lines drained per poll tick",
		Buckets: prometheus.LinearBuckets(0, 5, 11),
	})

	// Host -> device
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dct_commands_sent_total",
		Help: "Commands written to the device, by command and result",
	}, []string{"command", "result"})

	// Connection lifecycle
	ConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dct_connection_errors_total",
		Help: "Failed connects and connections lost to I/O errors",
	})

	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dct_connected",
		Help: "1 while a device connection is open",
	})

	PendingDetects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dct_pending_detects",
		Help: "Detect requests awaiting a response",
	})
)
