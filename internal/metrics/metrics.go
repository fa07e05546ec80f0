// Package metrics exposes the agent's Prometheus collectors. Every method is
// safe to call on a nil *Metrics so components can run without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "station_agent"

type Metrics struct {
	registry *prometheus.Registry

	cameraOpens    *prometheus.CounterVec
	readFailures   *prometheus.CounterVec
	activeDevice   prometheus.Gauge
	switches       prometheus.Counter
	pollFailures   prometheus.Counter
	liveFrames     *prometheus.CounterVec
	liveFPS        prometheus.Gauge
	inference      *prometheus.HistogramVec
	inferenceFails *prometheus.CounterVec
	captures       *prometheus.CounterVec
	taskErrors     *prometheus.CounterVec
}

// New builds a registry with Go and process collectors plus the agent metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cameraOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "camera_opens_total",
			Help: "Device open attempts by device and result.",
		}, []string{"device", "result"}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frame_read_failures_total",
			Help: "Frame reads that returned nothing.",
		}, []string{"device"}),
		activeDevice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_device",
			Help: "Currently open device id, -1 when closed.",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "active_device_switches_total",
			Help: "Backend-driven active device changes applied by the poller.",
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "backend_poll_failures_total",
			Help: "Active-device polls that returned no information.",
		}),
		liveFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "live_frames_total",
			Help: "Live feed pushes by station and result.",
		}, []string{"station", "result"}),
		liveFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_fps",
			Help: "Live feed frames processed per second over the last report window.",
		}),
		inference: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "inference_seconds",
			Help:    "Inference latency by model.",
			Buckets: []float64{.01, .025, .05, .1, .2, .3, .5, 1, 2},
		}, []string{"model"}),
		inferenceFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inference_failures_total",
			Help: "Frames passed through unannotated because inference failed.",
		}, []string{"station"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "captures_total",
			Help: "Durable capture attempts by station, mode and result.",
		}, []string{"station", "mode", "result"}),
		taskErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "task_iteration_errors_total",
			Help: "Background task iterations that failed and backed off.",
		}, []string{"task"}),
	}

	m.activeDevice.Set(-1)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cameraOpens, m.readFailures, m.activeDevice, m.switches, m.pollFailures,
		m.liveFrames, m.liveFPS, m.inference, m.inferenceFails, m.captures, m.taskErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CameraOpened(id int, ok bool) {
	if m == nil {
		return
	}
	m.cameraOpens.WithLabelValues(strconv.Itoa(id), result(ok)).Inc()
	if ok {
		m.activeDevice.Set(float64(id))
	}
}

func (m *Metrics) CameraReleased() {
	if m == nil {
		return
	}
	m.activeDevice.Set(-1)
}

func (m *Metrics) FrameReadFailed(id int) {
	if m == nil {
		return
	}
	m.readFailures.WithLabelValues(strconv.Itoa(id)).Inc()
}

func (m *Metrics) ActiveDeviceSwitched() {
	if m == nil {
		return
	}
	m.switches.Inc()
}

func (m *Metrics) PollFailed() {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
}

func (m *Metrics) LiveFramePushed(station string, ok bool) {
	if m == nil {
		return
	}
	m.liveFrames.WithLabelValues(station, result(ok)).Inc()
}

func (m *Metrics) SetLiveFPS(fps float64) {
	if m == nil {
		return
	}
	m.liveFPS.Set(fps)
}

func (m *Metrics) InferenceObserved(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.inference.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) InferenceFailed(station string) {
	if m == nil {
		return
	}
	m.inferenceFails.WithLabelValues(station).Inc()
}

func (m *Metrics) CaptureSent(station string, manual, ok bool) {
	if m == nil {
		return
	}
	mode := "auto"
	if manual {
		mode = "manual"
	}
	m.captures.WithLabelValues(station, mode, result(ok)).Inc()
}

func (m *Metrics) TaskFailed(task string) {
	if m == nil {
		return
	}
	m.taskErrors.WithLabelValues(task).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
