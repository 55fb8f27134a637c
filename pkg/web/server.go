package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/pattern-detector/pkg/analysis"
	"github.com/ritzau/pattern-detector/pkg/logging"
	"github.com/ritzau/pattern-detector/pkg/model"
	"github.com/ritzau/pattern-detector/pkg/output"
	"github.com/ritzau/pattern-detector/pkg/pubsub"
)

// PatternSummary is one entry of the pattern listing
type PatternSummary struct {
	Pattern    string   `json:"pattern"`
	Roles      []string `json:"roles"`
	Connecting int      `json:"connectingRoles"`
	Instances  int      `json:"instances"`
	Error      string   `json:"error,omitempty"`
}

// topics maps the subscription path segment to the published topic
var topics = map[string]string{
	"status":    pubsub.TopicStatus,
	"instances": pubsub.TopicInstances,
}

// Server exposes the latest detection result read-only over HTTP.
// It is the analysis.Sink of the runner in web mode.
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	log       *slog.Logger

	mu     sync.RWMutex
	result *analysis.Result
}

var _ analysis.Sink = (*Server)(nil)

// NewServer creates a new web server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// detection_status: new subscribers only need the current state
	ssePublisher.ConfigureTopic(pubsub.TopicStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	// pattern_instances: one event per pattern kind, replay the current run
	ssePublisher.ConfigureTopic(pubsub.TopicInstances, pubsub.TopicConfig{
		BufferSize: len(model.Kinds()),
		ReplayAll:  true,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		log:       logging.New("web"),
	}
	s.setupRoutes()
	return s
}

// PublishStatus publishes a detection status event. A loading status starts a new run,
// so the instance counts of the previous run are no longer replayed.
func (s *Server) PublishStatus(state, message string, step, total int) {
	if state == pubsub.StateLoading {
		s.publisher.Clear(pubsub.TopicInstances)
	}
	status := pubsub.DetectionStatus{
		State:   state,
		Message: message,
		Step:    step,
		Total:   total,
	}
	if err := s.publisher.Publish(pubsub.TopicStatus, state, status); err != nil {
		s.log.Warn("Failed to publish status", "state", state, "error", err)
	}
}

// PublishInstances publishes the instance count of one pattern kind
func (s *Server) PublishInstances(found pubsub.InstancesFound) {
	if err := s.publisher.Publish(pubsub.TopicInstances, "instances_found", found); err != nil {
		s.log.Warn("Failed to publish instances", "pattern", found.Pattern, "error", err)
	}
}

// SetResult replaces the result served by the API
func (s *Server) SetResult(result *analysis.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

func (s *Server) current() *analysis.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Handler returns the router wrapped in the request ID middleware
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	// More specific routes must come first
	s.router.HandleFunc("/api/result", s.handleResult).Methods("GET")
	s.router.HandleFunc("/api/system", s.handleSystem).Methods("GET")
	s.router.HandleFunc("/api/patterns", s.handlePatterns).Methods("GET")
	s.router.HandleFunc("/api/patterns/{pattern}/instances", s.handleInstances).Methods("GET")
	s.router.HandleFunc("/api/patterns/{pattern}/instances/{index:[0-9]+}", s.handleInstance).Methods("GET")
	s.router.HandleFunc("/api/patterns/{pattern}/instances/{index:[0-9]+}/dot", s.handleInstanceDOT).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic, ok := topics[mux.Vars(r)["topic"]]
	if !ok {
		http.Error(w, "Unknown topic", http.StatusNotFound)
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial comment establishes the stream (Safari)
	fmt.Fprintf(w, ": connected\n\n")
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			s.log.Debug("Subscriber went away", "topic", topic, "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result := s.current()
	if result == nil {
		http.Error(w, "Detection has not completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, output.NewReportView(result))
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	result := s.current()
	if result == nil {
		http.Error(w, "Detection has not completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, output.NewGraphView(result.System))
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	result := s.current()

	summaries := make([]PatternSummary, 0, len(model.Kinds()))
	for _, kind := range model.Kinds() {
		summary := PatternSummary{Pattern: kind.String(), Roles: make([]string, 0, kind.RoleCount())}
		for _, role := range kind.Roles() {
			summary.Roles = append(summary.Roles, role.String())
		}
		if result != nil {
			if p, ok := result.Pattern(kind); ok {
				summary.Connecting = p.Connecting
				summary.Instances = len(p.Instances)
				if p.Err != nil {
					summary.Error = p.Err.Error()
				}
			}
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, summaries)
}

var errNotFound = errors.New("not found")

// lookup resolves the pattern in the route against the current result
func (s *Server) lookup(r *http.Request) (*analysis.PatternResult, int, error) {
	result := s.current()
	if result == nil {
		return nil, http.StatusServiceUnavailable, errors.New("detection has not completed yet")
	}

	kind, err := model.ParsePatternKind(mux.Vars(r)["pattern"])
	if err != nil {
		return nil, http.StatusNotFound, err
	}
	p, ok := result.Pattern(kind)
	if !ok {
		return nil, http.StatusNotFound, fmt.Errorf("pattern %s was not detected: %w", kind, errNotFound)
	}
	return p, http.StatusOK, nil
}

// instance resolves the pattern and instance index in the route
func (s *Server) instance(r *http.Request) (*analysis.PatternResult, int, int, error) {
	p, status, err := s.lookup(r)
	if err != nil {
		return nil, 0, status, err
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return nil, 0, http.StatusBadRequest, fmt.Errorf("invalid instance index: %w", err)
	}
	if index < 0 || index >= len(p.Instances) {
		return nil, 0, http.StatusNotFound, fmt.Errorf("instance %d of %s: %w", index, p.Kind, errNotFound)
	}
	return p, index, http.StatusOK, nil
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	p, status, err := s.lookup(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, output.NewPatternView(*p))
}

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	p, index, status, err := s.instance(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, output.NewGraphView(p.Instances[index]))
}

func (s *Server) handleInstanceDOT(w http.ResponseWriter, r *http.Request) {
	p, index, status, err := s.instance(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	out, err := output.MarshalDOT(p.Instances[index], output.InstanceName(*p, index))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Write(out)
}

// Start serves the API on port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// Close subscriptions first so SSE handlers return
		s.publisher.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Shutdown failed", "error", err)
		}
	}()

	s.log.Info("Starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
