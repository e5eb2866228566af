// Package metrics provides Prometheus metrics for the padcal service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default histogram layouts in milliseconds. A poll tick is usually well
// under a millisecond; device writes and HTTP calls span up to seconds.
var (
	defaultPollBuckets    = prometheus.ExponentialBuckets(0.05, 2, 12) //nolint:gochecknoglobals // constant bucket layout
	defaultLatencyBuckets = prometheus.ExponentialBuckets(0.25, 2, 14) //nolint:gochecknoglobals // constant bucket layout
)

// Manager owns every padcal collector.
type Manager struct {
	namespace      string
	subsystem      string
	pollBuckets    []float64
	latencyBuckets []float64
	pollRecording  bool
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Polling
	pollTicks       prometheus.Counter
	pollDuration    prometheus.Histogram
	pollingRate     prometheus.Gauge
	deviceConnected prometheus.Gauge
	sensorCount     prometheus.Gauge

	// Calibration state
	sensorValue       *prometheus.GaugeVec
	sensorTransitions *prometheus.CounterVec
	buttonPressed     *prometheus.GaugeVec
	releaseMode       *prometheus.GaugeVec

	// Sessions
	sessionsStarted   prometheus.Counter
	sessionConflicts  prometheus.Counter
	sessionsCommitted prometheus.Counter
	sessionsCancelled *prometheus.CounterVec

	// Device commands
	commandsEnqueued  *prometheus.CounterVec
	commandsDropped   *prometheus.CounterVec
	commandsFailed    *prometheus.CounterVec
	commandLatency    prometheus.Histogram
	commandQueueSize  prometheus.Gauge
	commandQueueLimit prometheus.Gauge

	// Profiles
	profileLoads *prometheus.CounterVec
	profileSaves *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry, no default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "padcal",
		subsystem:      "pad",
		pollBuckets:    defaultPollBuckets,
		latencyBuckets: defaultLatencyBuckets,
		pollRecording:  true,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		})
	}
	gaugeVec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		}, labels)
	}

	m.pollTicks = counter("poll_ticks_total", "Total number of device poll ticks")
	m.pollDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "poll_duration_milliseconds",
		Help:    "Duration of one poll tick in milliseconds",
		Buckets: m.pollBuckets,
	})
	m.pollingRate = gauge("polling_rate_hz", "Measured poll ticks per second")
	m.deviceConnected = gauge("device_connected", "1 when an active device is connected")
	m.sensorCount = gauge("sensors", "Number of sensors reported by the active device")

	m.sensorValue = gaugeVec("sensor_value", "Latest normalized sensor reading", "sensor")
	m.sensorTransitions = counterVec("sensor_transitions_total", "Pressed/released transitions per sensor", "sensor", "state")
	m.buttonPressed = gaugeVec("button_pressed", "1 while any sensor mapped to the button is pressed", "button")
	m.releaseMode = gaugeVec("release_mode", "1 for the active release mode", "mode")

	m.sessionsStarted = counter("sessions_started_total", "Calibration drag sessions started")
	m.sessionConflicts = counter("session_conflicts_total", "Drag begins ignored because another session was active")
	m.sessionsCommitted = counter("sessions_committed_total", "Calibration drag sessions committed")
	m.sessionsCancelled = counterVec("sessions_cancelled_total", "Calibration drag sessions cancelled", "reason")

	m.commandsEnqueued = counterVec("commands_enqueued_total", "Device commands enqueued", "kind")
	m.commandsDropped = counterVec("commands_dropped_total", "Device commands dropped before dispatch", "kind", "reason")
	m.commandsFailed = counterVec("commands_failed_total", "Device commands rejected by the device", "kind")
	m.commandLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "command_latency_milliseconds",
		Help:    "Time from enqueue to device write completion in milliseconds",
		Buckets: m.latencyBuckets,
	})
	m.commandQueueSize = gauge("command_queue_size", "Current number of queued device commands")
	m.commandQueueLimit = gauge("command_queue_capacity", "Capacity of the device command queue")

	m.profileLoads = counterVec("profile_loads_total", "Profile loads by result", "result")
	m.profileSaves = counterVec("profile_saves_total", "Profile saves by result", "result")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = counterVec("errors_total", "Errors by component and type", "component", "type")
}

func sensorLabel(i int) string { return strconv.Itoa(i) }

// Poll metrics.

func RecordPollTick(durationMs float64) {
	if !globalManager.pollRecording {
		return
	}
	globalManager.pollTicks.Inc()
	globalManager.pollDuration.Observe(durationMs)
}

func UpdatePollingRate(hz float64) { globalManager.pollingRate.Set(hz) }

func UpdateDeviceConnected(connected bool) {
	if connected {
		globalManager.deviceConnected.Set(1)
		return
	}
	globalManager.deviceConnected.Set(0)
}

func UpdateSensorCount(n int) { globalManager.sensorCount.Set(float64(n)) }

// Calibration state metrics.

func UpdateSensorValue(sensor int, value float64) {
	if !globalManager.pollRecording {
		return
	}
	globalManager.sensorValue.WithLabelValues(sensorLabel(sensor)).Set(value)
}

func RecordSensorTransition(sensor int, pressed bool) {
	state := "released"
	if pressed {
		state = "pressed"
	}
	globalManager.sensorTransitions.WithLabelValues(sensorLabel(sensor), state).Inc()
}

func UpdateButtonPressed(button int, pressed bool) {
	v := 0.0
	if pressed {
		v = 1
	}
	globalManager.buttonPressed.WithLabelValues(strconv.Itoa(button)).Set(v)
}

// UpdateReleaseMode flags mode as the active one among all.
func UpdateReleaseMode(mode string, all []string) {
	for _, m := range all {
		v := 0.0
		if m == mode {
			v = 1
		}
		globalManager.releaseMode.WithLabelValues(m).Set(v)
	}
}

// ResetSensorSeries drops per-sensor and per-button series, used when the
// active device changes shape.
func ResetSensorSeries() {
	globalManager.sensorValue.Reset()
	globalManager.buttonPressed.Reset()
}

// Session metrics.

func RecordSessionStarted()   { globalManager.sessionsStarted.Inc() }
func RecordSessionConflict()  { globalManager.sessionConflicts.Inc() }
func RecordSessionCommitted() { globalManager.sessionsCommitted.Inc() }

func RecordSessionCancelled(reason string) {
	globalManager.sessionsCancelled.WithLabelValues(reason).Inc()
}

// Command metrics.

func RecordCommandEnqueued(kind string) { globalManager.commandsEnqueued.WithLabelValues(kind).Inc() }

func RecordCommandDropped(kind, reason string) {
	globalManager.commandsDropped.WithLabelValues(kind, reason).Inc()
}

func RecordCommandFailed(kind string) { globalManager.commandsFailed.WithLabelValues(kind).Inc() }

func RecordCommandLatency(latencyMs float64) { globalManager.commandLatency.Observe(latencyMs) }

func UpdateCommandQueueSize(size int) { globalManager.commandQueueSize.Set(float64(size)) }

func UpdateCommandQueueCapacity(capacity int) {
	globalManager.commandQueueLimit.Set(float64(capacity))
}

// Profile metrics.

func RecordProfileLoad(result string) { globalManager.profileLoads.WithLabelValues(result).Inc() }
func RecordProfileSave(result string) { globalManager.profileSaves.WithLabelValues(result).Inc() }

// HTTP metrics.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error of errorType raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
