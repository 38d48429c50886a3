package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/pipeline"
)

// maxBodyBytes bounds ingest request bodies.
const maxBodyBytes = 1 << 20

// IngestRequest is the body of POST /v1/events.
type IngestRequest struct {
	Key        string         `json:"key"`
	DurationMs float64        `json:"duration_ms"`
	Success    *bool          `json:"success,omitempty"`
	Cost       *float64       `json:"cost,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate rejects requests the tracker would otherwise accept silently.
func (r IngestRequest) Validate() error {
	switch {
	case r.Key == "":
		return errors.New("key is required")
	case r.DurationMs < 0:
		return errors.New("duration_ms must not be negative")
	case r.Cost != nil && *r.Cost < 0:
		return errors.New("cost must not be negative")
	}
	return nil
}

// Handler returns the daemon HTTP API.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.tel != nil {
		if h := s.tel.Handler(); h != nil {
			r.Handle("/metrics", h)
		}
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/events", s.handleIngest)
		r.Get("/events", s.handleEvents)
		r.Get("/stats", s.handleAllStats)
		r.Get("/stats/{key}", s.handleStats)
		r.Get("/top", s.handleTop)
		r.Get("/perf", s.handlePerf)
		r.Get("/report", s.handleReport)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/alerts/check", s.handleCheck)
		r.Get("/rules", s.handleRules)
		r.Get("/metrics", s.handleReadings)
		r.Post("/metrics", s.handlePushReadings)
		r.Get("/stream", s.handleStream)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	duration := time.Duration(req.DurationMs * float64(time.Millisecond))
	success := req.Success == nil || *req.Success
	var cost float64
	if req.Cost != nil {
		cost = *req.Cost
	} else {
		cost = s.prices.CostAt(req.Key, time.Now(), duration)
	}

	persist := func(model.Event) error { return nil }
	if s.st != nil {
		persist = s.st.SaveEvent
	}
	ev, err := s.mon.RecordPersisted(req.Key, duration, success, cost, req.Metadata, persist)
	if err != nil {
		s.log.Error().Err(err).Str("key", req.Key).Msg("persisting event")
		writeError(w, http.StatusInternalServerError, "event not persisted")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleAllStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.AllStats())
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	st := s.mon.Stats(key)
	st.Key = key
	writeJSON(w, http.StatusOK, st)
}

func (s *Service) handleTop(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "n must be an integer")
			return
		}
		n = v
	}
	by := r.URL.Query().Get("by")
	if by == "" {
		by = pipeline.RankByCount
	}

	top, err := s.mon.TopTools(n, by)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Service) handlePerf(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		p, ok := s.mon.PerfByKey()[key]
		if !ok {
			p = model.PerfSummary{}
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, s.mon.Perf())
}

func (s *Service) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Report())
}

// handleAlerts lists recently fired alerts, oldest first. The store is
// preferred so alerts survive restarts; otherwise the event ring is used.
func (s *Service) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = v
	}

	if s.st != nil {
		alerts, err := s.st.LoadAlerts(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if alerts == nil {
			alerts = []model.Alert{}
		}
		for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
			alerts[i], alerts[j] = alerts[j], alerts[i]
		}
		writeJSON(w, http.StatusOK, alerts)
		return
	}

	writeJSON(w, http.StatusOK, s.recentAlerts(limit))
}

func (s *Service) recentAlerts(limit int) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := []model.Alert{}
	for _, ev := range s.events {
		if ev.Alert != nil {
			alerts = append(alerts, *ev.Alert)
		}
	}
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[len(alerts)-limit:]
	}
	return alerts
}

func (s *Service) handleCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.checkOnce())
}

func (s *Service) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Rules())
}

func (s *Service) handleReadings(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	readings := maps.Clone(s.readings)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, readings)
}

// handlePushReadings merges externally measured values (cpu_percent,
// queue depth and the like) into the readings checked on every tick.
func (s *Service) handlePushReadings(w http.ResponseWriter, r *http.Request) {
	var in map[string]float64
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	s.mu.Lock()
	maps.Copy(s.readings, in)
	out := maps.Clone(s.readings)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
