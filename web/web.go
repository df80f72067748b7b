// Package web provides a read-only HTTP server for capital gains reports.
//
// The server loads the transaction files once, runs the calculator and
// serves the results as an HTML page and as a JSON API. With watching
// enabled it recalculates when an input file changes and notifies browsers
// through server-sent events.
//
// SECURITY WARNING: This server has no authentication and should only be
// bound to localhost (127.0.0.1). Do not expose it to untrusted networks.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robinvdvleuten/cgt/loader"
	"github.com/robinvdvleuten/cgt/logging"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/robinvdvleuten/cgt/telemetry"
	"github.com/robinvdvleuten/cgt/valuation"
)

type Server struct {
	Port         int
	Host         string
	Version      string
	CommitSHA    string
	WatchEnabled bool

	config *tax.Config
	inputs []string
	valuer *valuation.Cached

	mu       sync.RWMutex
	calc     *tax.Calculator
	files    []string // absolute paths of every file read, includes too
	timings  []telemetry.Stage
	loadedAt time.Time
	lastErr  error // set when the latest reload failed; calc keeps the previous result

	// SSE clients for broadcasting reload events
	sseClients map[chan string]struct{}
	sseMu      sync.Mutex
}

func New(port int, cfg *tax.Config, files ...string) *Server {
	return NewWithVersion(port, cfg, "", "", files...)
}

func NewWithVersion(port int, cfg *tax.Config, version, commitSHA string, files ...string) *Server {
	if cfg == nil {
		cfg = tax.NewConfig()
	}
	return &Server{
		Port:       port,
		Host:       "127.0.0.1",
		Version:    version,
		CommitSHA:  commitSHA,
		config:     cfg,
		inputs:     files,
		valuer:     valuation.NewCached(valuation.NewStatic(cfg.Prices), valuation.DefaultExpiration),
		sseClients: make(map[chan string]struct{}),
	}
}

// Start loads the inputs and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("web.start %s:%d", s.Host, s.Port))
	defer timer.End()

	if len(s.inputs) == 0 {
		return fmt.Errorf("at least one transaction file is required")
	}

	loadTimer := timer.Child("web.load")
	if err := s.recompute(ctx); err != nil {
		loadTimer.End()
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	loadTimer.End()

	if s.WatchEnabled {
		if err := s.startWatcher(ctx); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
	}

	setupTimer := timer.Child("web.setup_router")
	mux, err := s.setupRouter()
	setupTimer.End()

	if err != nil {
		return fmt.Errorf("failed to setup router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.Host, s.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRouter() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleGetStatus)
	mux.HandleFunc("GET /api/years", s.handleGetYears)
	mux.HandleFunc("GET /api/capital-gains", s.handleGetCapitalGains)
	mux.HandleFunc("GET /api/income", s.handleGetIncome)
	mux.HandleFunc("GET /api/holdings", s.handleGetHoldings)
	mux.HandleFunc("GET /api/timings", s.handleGetTimings)
	mux.HandleFunc("GET /api/events", s.handleSSE)

	if err := s.mountIndex(mux); err != nil {
		return nil, err
	}

	return mux, nil
}

// recompute loads the inputs and runs the calculator over them. A failure
// is remembered for the status endpoint and the previous result is kept.
// Caller must NOT hold the mutex - this method acquires it internally.
func (s *Server) recompute(ctx context.Context) error {
	collector := telemetry.NewTimingCollector()
	runCtx := telemetry.WithCollector(ctx, collector)
	timer := collector.Start("web.recompute")

	calc, files, err := s.calculate(runCtx)
	timer.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		return err
	}

	s.calc = calc
	s.files = files
	s.timings = collector.Stages()
	s.loadedAt = time.Now()
	s.lastErr = nil
	s.valuer.Flush()

	return nil
}

func (s *Server) calculate(ctx context.Context) (*tax.Calculator, []string, error) {
	ldr := loader.New(loader.WithFollowIncludes(), loader.WithLocation(s.config.Location))

	result, err := ldr.Load(ctx, s.inputs...)
	if err != nil {
		return nil, nil, err
	}

	calc := tax.New(s.config, result.Transactions)
	if err := calc.Run(ctx); err != nil {
		return nil, nil, err
	}
	return calc, result.Files, nil
}

// startWatcher watches every loaded file and recalculates when one changes.
func (s *Server) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	s.mu.RLock()
	files := append([]string(nil), s.files...)
	s.mu.RUnlock()

	logger := logging.FromContext(ctx)
	for _, file := range files {
		if err := watcher.Add(file); err != nil {
			logger.Warn("failed to watch file", "file", file, "error", err)
		}
	}

	go s.runWatcher(ctx, watcher)

	return nil
}

// runWatcher processes file system events with debouncing.
func (s *Server) runWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	// editors often write files in multiple steps
	const debounceDelay = 100 * time.Millisecond

	logger := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Remove and Rename are common in atomic saves
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				s.handleFileChange(ctx, watcher)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("file watcher error", "error", err)
		}
	}
}

// handleFileChange recalculates and updates the watch list, since the set
// of included files may have changed.
func (s *Server) handleFileChange(ctx context.Context, watcher *fsnotify.Watcher) {
	logger := logging.FromContext(ctx)

	s.mu.RLock()
	oldFiles := make(map[string]bool)
	for _, f := range s.files {
		oldFiles[f] = true
	}
	s.mu.RUnlock()

	if err := s.recompute(ctx); err != nil {
		logger.Error("failed to recalculate", "error", err)
		s.broadcast("error")
		return
	}

	s.mu.RLock()
	newFiles := make(map[string]bool)
	for _, f := range s.files {
		newFiles[f] = true
	}
	s.mu.RUnlock()

	for file := range oldFiles {
		if !newFiles[file] {
			_ = watcher.Remove(file)
		}
	}

	// re-add everything to catch files that were re-created
	for file := range newFiles {
		if err := watcher.Add(file); err != nil {
			logger.Warn("failed to watch file", "file", file, "error", err)
		}
	}

	logger.Info("recalculated", "files", len(newFiles))
	s.broadcast("reload")
}

// handleSSE handles Server-Sent Events connections for real-time updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan string, 10)

	s.sseMu.Lock()
	s.sseClients[clientChan] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, clientChan)
		s.sseMu.Unlock()
	}()

	_, _ = fmt.Fprintf(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-clientChan:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}
}

// broadcast sends an event to all connected SSE clients.
func (s *Server) broadcast(event string) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()

	for clientChan := range s.sseClients {
		select {
		case clientChan <- event:
		default:
			// Client buffer full, skip
		}
	}
}
