package compiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics of one compiler. A nil *Metrics records nothing.
type Metrics struct {
	buildsTotal   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	phaseDuration *prometheus.HistogramVec
	hookFailures  *prometheus.CounterVec

	modules         prometheus.Gauge
	bailoutModules  prometheus.Gauge
	codeGenCacheHit *prometheus.CounterVec

	assetsEmitted prometheus.Counter
	assetsSkipped prometheus.Counter
	bytesEmitted  prometheus.Counter
}

// Registers the metrics with "registerer". Use a fresh registry per compiler
// in tests, since registering twice with the same registry fails.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packcore_builds_total",
				Help: "Total number of builds",
			},
			[]string{"result"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "packcore_build_duration_seconds",
				Help:    "Build latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "packcore_phase_duration_seconds",
				Help:    "Build phase latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"phase"},
		),
		hookFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packcore_hook_failures_total",
				Help: "Total number of failed plugin hook calls",
			},
			[]string{"hook"},
		),
		modules: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "packcore_modules",
				Help: "Number of modules in the most recent build",
			},
		),
		bailoutModules: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "packcore_bailout_modules",
				Help: "Number of modules the most recent analysis could not prune",
			},
		),
		codeGenCacheHit: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packcore_codegen_cache_total",
				Help: "Code generation cache lookups",
			},
			[]string{"result"},
		),
		assetsEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "packcore_assets_emitted_total",
				Help: "Total number of assets written",
			},
		),
		assetsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "packcore_assets_skipped_total",
				Help: "Total number of assets skipped because they didn't change",
			},
		),
		bytesEmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "packcore_bytes_emitted_total",
				Help: "Total number of bytes written",
			},
		),
	}
}

func (m *Metrics) buildFinished(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.buildsTotal.WithLabelValues(result).Inc()
	m.buildDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) phaseFinished(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func (m *Metrics) hookFailed(hook string) {
	if m == nil {
		return
	}
	m.hookFailures.WithLabelValues(hook).Inc()
}

func (m *Metrics) graphBuilt(modules int, bailouts int) {
	if m == nil {
		return
	}
	m.modules.Set(float64(modules))
	m.bailoutModules.Set(float64(bailouts))
}

func (m *Metrics) codeGenLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.codeGenCacheHit.WithLabelValues("hit").Inc()
	} else {
		m.codeGenCacheHit.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) assetEmitted(size int) {
	if m == nil {
		return
	}
	m.assetsEmitted.Inc()
	m.bytesEmitted.Add(float64(size))
}

func (m *Metrics) assetSkipped() {
	if m == nil {
		return
	}
	m.assetsSkipped.Inc()
}
