package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks stream sessions currently supervised.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apis_viewer_active_sessions",
		Help: "Stream sessions currently supervised",
	})

	// FramesTotal counts frames accepted per unit.
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apis_viewer_frames_total",
		Help: "Frames accepted from unit streams",
	}, []string{"unit"})

	// FrameBytesTotal counts frame payload bytes per unit.
	FrameBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apis_viewer_frame_bytes_total",
		Help: "Frame payload bytes received from unit streams",
	}, []string{"unit"})

	// ReconnectsTotal counts scheduled reconnect attempts per unit.
	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apis_viewer_reconnects_total",
		Help: "Reconnect attempts scheduled after abnormal closes",
	}, []string{"unit"})

	// FailuresTotal counts sessions that exhausted their retry budget.
	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apis_viewer_failures_total",
		Help: "Sessions that exhausted automatic retries",
	}, []string{"unit"})

	// ManualRetriesTotal counts user-triggered retries from the failed state.
	ManualRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apis_viewer_manual_retries_total",
		Help: "Manual retries triggered from the failed state",
	}, []string{"unit"})

	// FrameSizeBytes observes frame payload sizes.
	FrameSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apis_viewer_frame_size_bytes",
		Help:    "Frame payload size distribution",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
	})

	// RecorderDroppedTotal counts session events dropped under backpressure.
	RecorderDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apis_viewer_recorder_dropped_events_total",
		Help: "Session events dropped because the recorder buffer was full",
	})
)
