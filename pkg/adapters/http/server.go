package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/nova/internal/logging"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inspector is the part of the shell the HTTP surface reads and drives.
type Inspector interface {
	Sessions() []string
	Snapshot(sessionID string) (domain.NavigationSnapshot, error)
	Navigate(ctx context.Context, sessionID string, nodeID uuid.UUID, forward ...domain.Entry) (bool, error)
	Modules(ctx context.Context) ([]domain.Module, error)
}

// Server serves the introspection API of a shell.
type Server struct {
	Inspector Inspector
	Streams   *StreamManager
	Version   string

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer exposes the gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams shares a StreamManager the shell publishes step events to.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server for insp.
func NewServer(insp Inspector, opts ...Option) *Server {
	s := &Server{
		Inspector: insp,
		Version:   "unknown",
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}
	return s
}

// NewHandler creates the HTTP handler for insp.
func NewHandler(insp Inspector, opts ...Option) http.Handler {
	return NewServer(insp, opts...).Routes()
}

// Routes mounts the API on a chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Get("/{sessionID}", s.GetSession)
		r.Post("/{sessionID}/navigate/{nodeID}", s.Navigate)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NavigateResponse is the body of a navigate call.
type NavigateResponse struct {
	Moved    bool                      `json:"moved"`
	Snapshot domain.NavigationSnapshot `json:"snapshot"`
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Inspector.Sessions())
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Inspector.Snapshot(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// Navigate handles POST /sessions/{sessionID}/navigate/{nodeID}.
// A JSON object body, when present, is forwarded to the target step.
func (s *Server) Navigate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	nodeID, err := uuid.Parse(chi.URLParam(r, "nodeID"))
	if err != nil {
		http.Error(w, "Invalid node id", http.StatusBadRequest)
		return
	}

	var forward []domain.Entry
	if r.ContentLength > 0 {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("Navigate: invalid request body", "err", err)
			return
		}
		for k, v := range body {
			forward = append(forward, domain.NewEntry(k, v, true))
		}
	}

	moved, err := s.Inspector.Navigate(r.Context(), sessionID, nodeID, forward...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.Inspector.Snapshot(sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("navigated", "session_id", sessionID, "node_id", nodeID, "moved", moved)
	s.writeJSON(w, http.StatusOK, NavigateResponse{Moved: moved, Snapshot: snap})
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	modules, err := s.Inspector.Modules(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, modules)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "nova-http",
		"version": strings.TrimSpace(s.Version),
	})
}

// SubscribeEvents handles GET /events (SSE). With ?session_id= only the
// session's content step changes are streamed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := AllTopics
	if id := r.URL.Query().Get("session_id"); id != "" {
		snap, err := s.Inspector.Snapshot(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		topic = snap.GroupID.String()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "topic", topic)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrStepNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOwnerTerminated), errors.Is(err, domain.ErrSchedulerStopped):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

// AllTopics receives every published event.
const AllTopics = "*"

// StreamManager fans step events out to SSE subscribers by group id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(topic string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of topic and of AllTopics.
// Slow subscribers lose messages instead of blocking the publisher.
func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, t := range []string{topic, AllTopics} {
		for ch := range sm.subscribers[t] {
			select {
			case ch <- msg:
			default:
			}
		}
		if topic == AllTopics {
			break
		}
	}
}

// PublishStep is a domain.LifecycleHooks OnStepChanged callback.
func (sm *StreamManager) PublishStep(_ context.Context, ev *domain.StepEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	sm.Broadcast(ev.GroupID.String(), string(b))
}
