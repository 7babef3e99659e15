package status

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"pumphouse/internal/types"
)

const metricsNamespace = "pumphouse"

// Collector holds the Prometheus instruments for the control loop and
// implements the controller's Metrics interface.
type Collector struct {
	iterations    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	sensorCycles  *prometheus.CounterVec
	faults        *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	wateringSecs  prometheus.Counter
	watchdogFeeds prometheus.Counter
}

// NewCollector creates the loop instruments and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loop_iterations_total",
			Help:      "Control loop iterations by machine state.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_transitions_total",
			Help:      "State machine transitions.",
		}, []string{"from", "to"}),
		sensorCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sensor_cycles_total",
			Help:      "Sensing cycles by validity.",
		}, []string{"valid"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "faults_total",
			Help:      "Faults reported by code.",
		}, []string{"code"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Telemetry uploads by terminal outcome.",
		}, []string{"outcome"}),
		wateringSecs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "watering_seconds_total",
			Help:      "Cumulative pump run time in seconds.",
		}),
		watchdogFeeds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "watchdog_feeds_total",
			Help:      "Hardware watchdog services.",
		}),
	}

	reg.MustRegister(
		c.iterations,
		c.transitions,
		c.sensorCycles,
		c.faults,
		c.uploads,
		c.wateringSecs,
		c.watchdogFeeds,
	)
	return c
}

func (c *Collector) ObserveIteration(state types.State) {
	c.iterations.WithLabelValues(string(state)).Inc()
}

func (c *Collector) ObserveTransition(from, to types.State) {
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) ObserveSensorCycle(valid bool) {
	c.sensorCycles.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

func (c *Collector) ObserveFault(code types.FaultCode) {
	c.faults.WithLabelValues(string(code)).Inc()
}

func (c *Collector) ObserveUpload(outcome types.SendOutcome) {
	c.uploads.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) AddWateringSeconds(seconds float64) {
	c.wateringSecs.Add(seconds)
}

func (c *Collector) ObserveWatchdogFeed() {
	c.watchdogFeeds.Inc()
}
