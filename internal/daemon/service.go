// Package daemon follows the opencode event stream in the background and
// serves its activity over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/ocburn/internal/opencode"
	"github.com/theirongolddev/ocburn/internal/plugin"
)

// Defaults applied by New.
const (
	DefaultAddr         = "127.0.0.1:8788"
	DefaultEventsBuffer = 200
	DefaultBackoff      = time.Second
	DefaultMaxBackoff   = 30 * time.Second
)

// EventSource opens the opencode event stream. The channel closes when the
// stream ends.
type EventSource interface {
	Events(ctx context.Context) (<-chan opencode.Event, error)
}

// Handler processes one opencode event.
type Handler interface {
	HandleEvent(ctx context.Context, ev opencode.Event) error
	InFlight() int
}

// LedgerCounter reports ledger row counts for /v1/status.
type LedgerCounter interface {
	Counts() (sessions, toasts int, err error)
}

// Runner is a background task stopped by cancelling ctx, such as a config watcher.
type Runner interface {
	Run(ctx context.Context)
}

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	EventsBuffer int
	// Backoff is the first reconnect delay; it doubles up to MaxBackoff.
	Backoff     time.Duration
	MaxBackoff  time.Duration
	OpencodeURL string
	HistoryDir  string
	LedgerPath  string
}

// Deps are the collaborators of a Service. Ledger and Watcher may be nil.
type Deps struct {
	Events  EventSource
	Handler Handler
	Ledger  LedgerCounter
	Watcher Runner
	Log     *zap.Logger
}

// Event is one toast or record produced while handling opencode events.
type Event struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Activity  plugin.Activity `json:"activity"`
}

// Counters are the running totals shown at /v1/status.
type Counters struct {
	EventsReceived int64 `json:"events_received"`
	EventsHandled  int64 `json:"events_handled"`
	HandlerErrors  int64 `json:"handler_errors"`
	Reconnects     int64 `json:"reconnects"`
	Toasts         int64 `json:"toasts"`
	Records        int64 `json:"records"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	UptimeSec       int64     `json:"uptime_sec"`
	OpencodeURL     string    `json:"opencode_url"`
	HistoryDir      string    `json:"history_dir,omitempty"`
	LedgerPath      string    `json:"ledger_path,omitempty"`
	Connected       bool      `json:"connected"`
	Counters        Counters  `json:"counters"`
	InFlight        int       `json:"in_flight"`
	LastEventAt     time.Time `json:"last_event_at"`
	LastEventType   string    `json:"last_event_type,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	LastErrorAt     time.Time `json:"last_error_at"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
	LedgerSessions  int       `json:"ledger_sessions"`
	LedgerToasts    int       `json:"ledger_toasts"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	handlers sync.WaitGroup

	mu            sync.RWMutex
	startedAt     time.Time
	connected     bool
	counters      Counters
	lastEventAt   time.Time
	lastEventType string
	lastError     string
	lastErrorAt   time.Time
	nextSeq       int64
	events        []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, deps Deps) *Service {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = DefaultEventsBuffer
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.Backoff)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		cfg:       cfg,
		deps:      deps,
		log:       log,
		now:       time.Now,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Record publishes an activity produced by the plugin. It is meant as the
// plugin OnActivity callback.
func (s *Service) Record(a plugin.Activity) {
	s.mu.Lock()
	switch a.Kind {
	case plugin.ActivityToast:
		s.counters.Toasts++
	case plugin.ActivityRecord:
		s.counters.Records++
	}
	s.nextSeq++
	ev := Event{
		ID:        uuid.NewString(),
		Seq:       s.nextSeq,
		Type:      string(a.Kind),
		Timestamp: a.At,
		Activity:  a,
	}
	s.mu.Unlock()

	s.publishEvent(ev)
}

// Run serves the HTTP API on cfg.Addr and follows events until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("daemon listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It returns after in-flight event
// handlers finish.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("daemon http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.follow(gctx)
		return nil
	})
	if s.deps.Watcher != nil {
		g.Go(func() error {
			s.deps.Watcher.Run(gctx)
			return nil
		})
	}

	s.log.Info("daemon started", zap.String("addr", ln.Addr().String()), zap.String("opencode", s.cfg.OpencodeURL))
	err := g.Wait()
	s.handlers.Wait()
	return err
}

// Router returns the HTTP API.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/events", s.handleEvents)
	r.Get("/v1/stream", s.handleStream)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// follow reads the event stream until ctx ends, reconnecting with
// exponential backoff. Each event is handled in its own goroutine.
func (s *Service) follow(ctx context.Context) {
	backoff := s.cfg.Backoff
	for {
		events, err := s.deps.Events.Events(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.recordError(fmt.Errorf("connecting to event stream: %w", err))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, s.cfg.MaxBackoff)
			s.addReconnect()
			continue
		}

		backoff = s.cfg.Backoff
		s.setConnected(true)
		for ev := range events {
			s.dispatch(ctx, ev)
		}
		s.setConnected(false)

		if ctx.Err() != nil {
			return
		}
		s.log.Warn("event stream closed, reconnecting", zap.Duration("backoff", backoff))
		if !sleep(ctx, backoff) {
			return
		}
		s.addReconnect()
	}
}

func (s *Service) dispatch(ctx context.Context, ev opencode.Event) {
	s.mu.Lock()
	s.counters.EventsReceived++
	s.lastEventAt = s.now()
	s.lastEventType = ev.Type
	s.mu.Unlock()

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		if err := s.deps.Handler.HandleEvent(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.recordError(err)
			s.mu.Lock()
			s.counters.HandlerErrors++
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.counters.EventsHandled++
		s.mu.Unlock()
	}()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Service) recordError(err error) {
	s.log.Warn("daemon error", zap.Error(err))
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastErrorAt = s.now()
	s.mu.Unlock()
}

func (s *Service) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *Service) addReconnect() {
	s.mu.Lock()
	s.counters.Reconnects++
	s.mu.Unlock()
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
	var ledgerSessions, ledgerToasts int
	if s.deps.Ledger != nil {
		var err error
		if ledgerSessions, ledgerToasts, err = s.deps.Ledger.Counts(); err != nil {
			s.log.Debug("ledger counts unavailable", zap.Error(err))
		}
	}
	inFlight := 0
	if s.deps.Handler != nil {
		inFlight = s.deps.Handler.InFlight()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		UptimeSec:       int64(s.now().Sub(s.startedAt).Seconds()),
		OpencodeURL:     s.cfg.OpencodeURL,
		HistoryDir:      s.cfg.HistoryDir,
		LedgerPath:      s.cfg.LedgerPath,
		Connected:       s.connected,
		Counters:        s.counters,
		InFlight:        inFlight,
		LastEventAt:     s.lastEventAt,
		LastEventType:   s.lastEventType,
		LastError:       s.lastError,
		LastErrorAt:     s.lastErrorAt,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
		LedgerSessions:  ledgerSessions,
		LedgerToasts:    ledgerToasts,
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
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

	// An initial comment lets clients know the stream is open.
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
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
	_, _ = fmt.Fprintf(w, "id: %s\n", ev.ID)
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
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
