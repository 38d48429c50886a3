// Package daemon provides the long-running toolmeter service: HTTP ingest
// and query endpoints, a periodic alert check, and an SSE stream.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/theirongolddev/toolmeter/internal/config"
	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
	"github.com/theirongolddev/toolmeter/internal/store"
	"github.com/theirongolddev/toolmeter/internal/telemetry"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	Interval     time.Duration
	EventsBuffer int

	// WatchPaths are reloaded through LoadRules when they change.
	WatchPaths []string
	LoadRules  func() ([]model.AlertRule, error)
}

// Snapshot is a compact usage state for status/event payloads.
type Snapshot struct {
	At          time.Time `json:"at"`
	Events      int64     `json:"events"`
	Tools       int       `json:"tools"`
	SuccessRate float64   `json:"success_rate"`
	TotalCost   float64   `json:"total_cost"`
	P50         float64   `json:"p50_ms"`
	P95         float64   `json:"p95_ms"`
	P99         float64   `json:"p99_ms"`
}

// Delta captures snapshot deltas between checks.
type Delta struct {
	Events    int64   `json:"events"`
	TotalCost float64 `json:"total_cost"`
}

func (d Delta) isZero() bool {
	return d.Events == 0 && d.TotalCost == 0
}

// Stream event types.
const (
	EventSnapshot   = "snapshot"
	EventUsageDelta = "usage_delta"
	EventAlert      = "alert"
)

// Event is published on the stream whenever usage changes or a rule fires.
type Event struct {
	ID        int64        `json:"id"`
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Snapshot  Snapshot     `json:"snapshot"`
	Delta     Delta        `json:"delta"`
	Alert     *model.Alert `json:"alert,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt        time.Time `json:"started_at"`
	LastCheckAt      time.Time `json:"last_check_at"`
	CheckIntervalSec int       `json:"check_interval_sec"`
	CheckCount       int64     `json:"check_count"`
	AlertsFired      int64     `json:"alerts_fired"`
	Rules            int       `json:"rules"`
	Summary          Snapshot  `json:"summary"`
	LastError        string    `json:"last_error,omitempty"`
	EventCount       int       `json:"event_count"`
	SubscriberCount  int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	mon    *pipeline.Monitor
	st     *store.Store
	tel    *telemetry.Client
	prices *config.PriceTable
	log    zerolog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastCheckAt time.Time
	checkCount  int64
	alertsFired int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	readings    map[string]float64
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// Option configures optional collaborators.
type Option func(*Service)

// WithStore persists ingested events and fired alerts.
func WithStore(st *store.Store) Option {
	return func(s *Service) { s.st = st }
}

// WithTelemetry serves the provider's scrape handler at /metrics.
func WithTelemetry(c *telemetry.Client) Option {
	return func(s *Service) { s.tel = c }
}

// WithPrices estimates the cost of ingested events that report none.
func WithPrices(pt *config.PriceTable) Option {
	return func(s *Service) { s.prices = pt }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a new daemon service around mon.
func New(cfg Config, mon *pipeline.Monitor, opts ...Option) *Service {
	if cfg.Interval < time.Second {
		cfg.Interval = 15 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}

	s := &Service{
		cfg:       cfg,
		mon:       mon,
		log:       zerolog.Nop(),
		startedAt: time.Now(),
		readings:  make(map[string]float64),
		subs:      make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves HTTP and checks rules until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Dur("interval", s.cfg.Interval).Msg("daemon listening")

	if len(s.cfg.WatchPaths) > 0 && s.cfg.LoadRules != nil {
		w, err := config.Watch(s.cfg.WatchPaths, s.log, func(string) { s.reloadRules() })
		if err != nil {
			s.log.Warn().Err(err).Msg("rule hot reload disabled")
		} else {
			defer w.Stop()
		}
	}

	// Seed initial snapshot so status is useful immediately.
	s.checkOnce()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.closeSubscribers()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.checkOnce()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) reloadRules() {
	rules, err := s.cfg.LoadRules()
	if err != nil {
		s.log.Error().Err(err).Msg("rule reload failed, keeping old rules")
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return
	}
	old := len(s.mon.Rules())
	s.mon.SetRules(rules)
	s.log.Info().Int("old", old).Int("new", len(rules)).Msg("alert rules reloaded")
}

// checkOnce evaluates rules against current metrics plus pushed readings,
// persists and publishes fired alerts, and publishes a usage delta when
// totals changed.
func (s *Service) checkOnce() []model.Alert {
	s.mu.RLock()
	readings := maps.Clone(s.readings)
	s.mu.RUnlock()

	fired := s.mon.Check(readings)
	now := time.Now()
	snap := s.currentSnapshot(now)

	var lastErr string
	for _, a := range fired {
		s.log.Warn().
			Str("rule", a.Rule).
			Str("metric", a.Metric).
			Float64("value", a.Value).
			Float64("threshold", a.Threshold).
			Msg("alert fired")
		if s.st != nil {
			if err := s.st.SaveAlert(a); err != nil {
				s.log.Error().Err(err).Str("rule", a.Rule).Msg("saving alert")
				lastErr = err.Error()
			}
		}
	}

	var pending []Event

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastCheckAt = now
	s.checkCount++
	s.alertsFired += int64(len(fired))
	s.lastError = lastErr

	if !prevExists {
		pending = append(pending, s.newEventLocked(EventSnapshot, now, snap, Delta{}, nil))
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		pending = append(pending, s.newEventLocked(EventUsageDelta, now, snap, delta, nil))
	}
	for i := range fired {
		pending = append(pending, s.newEventLocked(EventAlert, now, snap, Delta{}, &fired[i]))
	}
	s.mu.Unlock()

	for _, ev := range pending {
		s.publishEvent(ev)
	}
	return fired
}

func (s *Service) newEventLocked(typ string, at time.Time, snap Snapshot, d Delta, a *model.Alert) Event {
	s.nextEventID++
	return Event{ID: s.nextEventID, Type: typ, Timestamp: at, Snapshot: snap, Delta: d, Alert: a}
}

func (s *Service) currentSnapshot(at time.Time) Snapshot {
	m := s.mon.Metrics()
	return Snapshot{
		At:          at,
		Events:      int64(m["count"]),
		Tools:       len(s.mon.AllStats()),
		SuccessRate: m["success_rate"],
		TotalCost:   m["total_cost"],
		P50:         m["p50"],
		P95:         m["p95"],
		P99:         m["p99"],
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Events:    curr.Events - prev.Events,
		TotalCost: curr.TotalCost - prev.TotalCost,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	rules := len(s.mon.Rules())

	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:        s.startedAt,
		LastCheckAt:      s.lastCheckAt,
		CheckIntervalSec: int(s.cfg.Interval.Seconds()),
		CheckCount:       s.checkCount,
		AlertsFired:      s.alertsFired,
		Rules:            rules,
		Summary:          s.snapshot,
		LastError:        s.lastError,
		EventCount:       len(s.events),
		SubscriberCount:  len(s.subs),
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Service) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
