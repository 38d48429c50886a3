// Package prometheus exposes toolmeter telemetry as Prometheus metrics on a
// private registry.
package prometheus

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolmeter"

// Client maps telemetry names onto counter and histogram vectors.
type Client struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New registers the toolmeter metrics on a fresh registry.
func New() *Client {
	c := &Client{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	c.counter("event_recorded", "events_total", "Tool invocations recorded", "tool", "status")
	c.counter("event_cost", "cost_total", "Accumulated invocation cost", "tool")
	c.counter("alert_fired", "alerts_total", "Alerts fired", "rule")

	c.histograms["event_duration"] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Tool invocation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
	c.registry.MustRegister(c.histograms["event_duration"])

	return c
}

func (c *Client) counter(name, metric, help string, labels ...string) {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      metric,
			Help:      help,
		},
		labels,
	)
	c.registry.MustRegister(vec)
	c.counters[name] = vec
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Client) Incr(name string, tags []string) {
	c.Add(name, 1, tags)
}

func (c *Client) Add(name string, value float64, tags []string) {
	vec, ok := c.counters[name]
	if !ok || value < 0 {
		return
	}
	m, err := vec.GetMetricWith(labels(tags))
	if err != nil {
		return
	}
	m.Add(value)
}

func (c *Client) Timing(name string, value time.Duration, tags []string) {
	vec, ok := c.histograms[name]
	if !ok {
		return
	}
	m, err := vec.GetMetricWith(labels(tags))
	if err != nil {
		return
	}
	m.Observe(value.Seconds())
}

func labels(tags []string) prometheus.Labels {
	l := make(prometheus.Labels, len(tags))
	for _, t := range tags {
		k, v, ok := strings.Cut(t, ":")
		if !ok {
			continue
		}
		l[k] = v
	}
	return l
}
