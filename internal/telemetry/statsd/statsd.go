// Package statsd pushes toolmeter telemetry to a DogStatsD agent.
package statsd

import (
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// DefaultAddress is the local agent address used when none is configured.
const DefaultAddress = "127.0.0.1:8125"

type Config struct {
	Address string
}

type Client struct {
	statsdc *statsd.Client
}

// New dials the agent. UDP sends never block on an absent agent.
func New(cfg Config) (*Client, error) {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	c, err := statsd.New(addr, statsd.WithNamespace("toolmeter."))
	if err != nil {
		return nil, err
	}
	return &Client{statsdc: c}, nil
}

func (c *Client) Incr(name string, tags []string) {
	_ = c.statsdc.Incr(name, tags, 1)
}

// Add sends value as a distribution sample; statsd counts are integral and
// costs are not.
func (c *Client) Add(name string, value float64, tags []string) {
	_ = c.statsdc.Distribution(name, value, tags, 1)
}

func (c *Client) Timing(name string, value time.Duration, tags []string) {
	_ = c.statsdc.Timing(name, value, tags, 1)
}

// Close flushes buffered metrics.
func (c *Client) Close() error {
	return c.statsdc.Close()
}
