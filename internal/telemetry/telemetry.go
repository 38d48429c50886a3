// Package telemetry exports recorded events and fired alerts to an
// external metrics backend.
package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/theirongolddev/toolmeter/internal/telemetry/prometheus"
	"github.com/theirongolddev/toolmeter/internal/telemetry/statsd"
)

// Metric names shared by every provider.
const (
	EventRecorded = "event_recorded"
	EventDuration = "event_duration"
	EventCost     = "event_cost"
	AlertFired    = "alert_fired"
)

// ProviderType selects a backend in Config.
type ProviderType string

const (
	ProviderNone       ProviderType = "none"
	ProviderPrometheus ProviderType = "prometheus"
	ProviderStatsd     ProviderType = "statsd"
)

// ErrUnsupportedProvider is returned by New for an unknown provider type.
var ErrUnsupportedProvider = errors.New("telemetry: unsupported provider")

// Provider receives counters and timings. Tags are "name:value" pairs.
type Provider interface {
	Incr(name string, tags []string)
	Add(name string, value float64, tags []string)
	Timing(name string, value time.Duration, tags []string)
}

// Config selects and configures a provider.
type Config struct {
	Provider      ProviderType
	StatsdAddress string
}

// Client wraps the selected provider. A nil *Client discards everything.
type Client struct {
	Provider Provider
	handler  http.Handler
	closer   func() error
}

// New builds the provider named by cfg.
func New(cfg Config) (*Client, error) {
	switch cfg.Provider {
	case "", ProviderNone:
		return &Client{Provider: Nop{}}, nil

	case ProviderPrometheus:
		p := prometheus.New()
		return &Client{Provider: p, handler: p.Handler()}, nil

	case ProviderStatsd:
		s, err := statsd.New(statsd.Config{Address: cfg.StatsdAddress})
		if err != nil {
			return nil, fmt.Errorf("starting statsd client: %w", err)
		}
		return &Client{Provider: s, closer: s.Close}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedProvider, cfg.Provider)
}

// Incr increments a counter.
func (c *Client) Incr(name string, tags ...string) {
	if c != nil && c.Provider != nil {
		c.Provider.Incr(name, tags)
	}
}

// Add adds value to a counter.
func (c *Client) Add(name string, value float64, tags ...string) {
	if c != nil && c.Provider != nil {
		c.Provider.Add(name, value, tags)
	}
}

// Timing records a duration.
func (c *Client) Timing(name string, value time.Duration, tags ...string) {
	if c != nil && c.Provider != nil {
		c.Provider.Timing(name, value, tags)
	}
}

// Handler returns the scrape handler, or nil when the provider is push-based.
func (c *Client) Handler() http.Handler {
	if c == nil {
		return nil
	}
	return c.handler
}

// Close flushes and releases the provider.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

// Tag formats a "name:value" tag.
func Tag(name, value string) string {
	return name + ":" + value
}

// Nop discards everything.
type Nop struct{}

func (Nop) Incr(string, []string)                  {}
func (Nop) Add(string, float64, []string)          {}
func (Nop) Timing(string, time.Duration, []string) {}
