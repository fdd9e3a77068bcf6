package bridge

import (
	"context"
	"time"
)

// MetricSink receives periodic counter samples. NullMetricSink is used when
// CloudWatch metrics are disabled so MetricsReporter always has somewhere to
// write.
type MetricSink interface {
	Put(ctx context.Context, name string, value float64) error
}

// NullMetricSink discards every sample.
type NullMetricSink struct{}

func (NullMetricSink) Put(context.Context, string, float64) error { return nil }

// MetricsReporter periodically samples Counters and reports both a running
// total and a recent delta for each, following metrics_reporter()'s
// _total/_recent(_persecond) pairing.
type MetricsReporter struct {
	counters   *Counters
	sink       MetricSink
	resolution time.Duration
	logger     *Logger
	run        *RunFlag
}

// NewMetricsReporter builds a reporter sampling every resolution seconds.
// Pass NullMetricSink{} to disable reporting while still satisfying the
// interface.
func NewMetricsReporter(counters *Counters, sink MetricSink, resolutionSecs int, logger *Logger, run *RunFlag) *MetricsReporter {
	if resolutionSecs <= 0 {
		resolutionSecs = 10
	}
	return &MetricsReporter{
		counters:   counters,
		sink:       sink,
		resolution: time.Duration(resolutionSecs) * time.Second,
		logger:     logger,
		run:        run,
	}
}

// Run blocks, reporting samples every resolution interval until the shared
// RunFlag is stopped. Intended to be launched as a goroutine by the
// supervisor.
func (m *MetricsReporter) Run(ctx context.Context) {
	var last counterSnapshot

	for m.run.Sleep(m.resolution) {
		m.logger.Debug("reporting metrics")
		cur := m.counters.snapshot()
		perSec := float64(m.resolution) / float64(time.Second)

		m.reportPair(ctx, "mq_connection_attempts", float64(cur.brokerAttempts), float64(cur.brokerAttempts-last.brokerAttempts), false, 1)
		m.reportPair(ctx, "ws_connection_attempts", float64(cur.wsAttempts), float64(cur.wsAttempts-last.wsAttempts), false, 1)
		m.reportPair(ctx, "to_ws", float64(cur.toWS), float64(cur.toWS-last.toWS), true, perSec)
		m.reportPair(ctx, "from_ws", float64(cur.fromWS), float64(cur.fromWS-last.fromWS), true, perSec)

		last = cur
	}
}

// reportPair emits `<name>_total` unconditionally and either `<name>_recent`
// (plain delta) or `<name>_persecond` (delta / resolution), matching the
// naming metrics_reporter() uses for connection-attempt counters versus
// message-traffic counters.
func (m *MetricsReporter) reportPair(ctx context.Context, name string, total, delta float64, perSecond bool, divisor float64) {
	if err := m.sink.Put(ctx, name+"_total", total); err != nil {
		m.logger.Error("reporting metric %s_total: %v", name, err)
	}
	suffix, value := "_recent", delta
	if perSecond {
		suffix, value = "_persecond", delta/divisor
	}
	if err := m.sink.Put(ctx, name+suffix, value); err != nil {
		m.logger.Error("reporting metric %s%s: %v", name, suffix, err)
	}
}
