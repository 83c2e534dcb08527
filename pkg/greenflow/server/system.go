package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/alerts"
	"github.com/elevated-systems/greenflow/pkg/greenflow/clock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/extractor"
	"github.com/elevated-systems/greenflow/pkg/greenflow/lifecycle"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
	"github.com/elevated-systems/greenflow/pkg/greenflow/pipeline"
	"github.com/elevated-systems/greenflow/pkg/greenflow/rag"
	"github.com/elevated-systems/greenflow/pkg/greenflow/store"
	"github.com/elevated-systems/greenflow/pkg/greenflow/stream"
)

// System owns every long-lived component of the service
type System struct {
	cfg *config.Config

	store     store.Store
	extractor *extractor.Extractor
	evaluator *alerts.Evaluator
	outputLog *pipeline.OutputLog
	watcher   *pipeline.Watcher
	tailer    *stream.Tailer
	engine    *rag.Engine
	upgrader  *websocket.Upgrader
	clock     clock.Clock
	random    func() float64 // [0, 1)

	// streams is cancelled when the HTTP server starts shutting down so that
	// open SSE and WebSocket loops release their connections
	streams       context.Context
	cancelStreams context.CancelFunc
}

// NewSystem opens the database and builds every component from cfg. The
// language model capability is resolved here, once.
func NewSystem(ctx context.Context, cfg *config.Config) (*System, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %v", err)
	}
	sys, err := newSystem(cfg, st, rag.NewCapability(ctx, cfg.RAG), clock.RealClock{})
	if err != nil {
		st.Close()
		return nil, err
	}
	return sys, nil
}

func newSystem(cfg *config.Config, st store.Store, capability rag.Capability, clk clock.Clock) (*System, error) {
	ex, err := extractor.New(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	outputLog, err := pipeline.NewOutputLog(cfg.Pipeline.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output log: %v", err)
	}

	processor := pipeline.NewProcessor(ex, clk, cfg.Pipeline.DefaultSource)
	watcher, err := pipeline.NewWatcher(cfg.Pipeline, processor, outputLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline watcher: %v", err)
	}

	streams, cancelStreams := context.WithCancel(context.Background())
	return &System{
		cfg:           cfg,
		store:         st,
		extractor:     ex,
		evaluator:     alerts.NewEvaluator(ex, cfg.Alerts.CriticalRisk, clk),
		outputLog:     outputLog,
		watcher:       watcher,
		tailer:        stream.NewTailer(outputLog, ex, clk, cfg.Stream),
		engine:        rag.NewEngine(cfg.RAG, capability),
		upgrader:      stream.NewUpgrader(cfg.Server.AllowedOrigins),
		clock:         clk,
		random:        rand.Float64,
		streams:       streams,
		cancelStreams: cancelStreams,
	}, nil
}

// Tasks returns the supervised background work of the service
func (s *System) Tasks() []lifecycle.Task {
	pipelineRestart := lifecycle.RestartNever
	if s.cfg.Pipeline.RestartOnFailure {
		pipelineRestart = lifecycle.RestartOnFailure
	}
	return []lifecycle.Task{
		{Name: "http-server", Run: s.RunHTTPServer, Restart: lifecycle.RestartNever, Critical: true},
		{Name: "pipeline", Run: s.watcher.Run, Restart: pipelineRestart, Critical: true},
		{Name: "knowledge-seed", Run: s.SeedKnowledge, Restart: lifecycle.RestartNever},
	}
}

// SeedKnowledge indexes the static knowledge base
func (s *System) SeedKnowledge(ctx context.Context) error {
	docs := rag.SeedDocuments(s.extractor.Reference())
	if err := s.engine.Seed(ctx, docs); err != nil {
		return fmt.Errorf("failed to seed knowledge base: %v", err)
	}
	klog.InfoS("Knowledge base seeded", "documents", s.engine.DocumentCount())
	return nil
}

// RunHTTPServer listens on the configured address until ctx is cancelled, then
// shuts down gracefully within the configured timeout.
func (s *System) RunHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.cancelStreams)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", srv.Addr, err)
	}
	klog.InfoS("HTTP server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	klog.InfoS("Shutting down HTTP server", "timeout", s.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %v", err)
	}
	return nil
}

// Router builds the HTTP handler tree
func (s *System) Router() *gin.Engine {
	registerValidatorTags()

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(), corsPolicy(s.cfg.Server.AllowedOrigins))

	if s.cfg.Observability.MetricsEnabled {
		r.GET(s.cfg.Observability.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.health)

	// /readings is the same resource under the name used by sensor clients
	for _, name := range []string{"/events", "/readings"} {
		g := v1.Group(name)
		g.POST("", s.createEvent)
		g.GET("", s.listEvents)
		g.GET("/:id", s.getEvent)
		g.GET("/:id/alerts", s.eventAlerts)
	}

	v1.GET("/alerts", s.listAlerts)
	v1.GET("/risk", s.risk)
	v1.GET("/recommendation", s.recommendation)
	v1.GET("/analytics/summary", s.summary)
	v1.POST("/query", s.query)
	v1.GET("/stream/events", s.streamSSE)
	v1.GET("/stream/ws", s.streamWebSocket)
	return r
}

// Close releases the engine and the store
func (s *System) Close() error {
	s.cancelStreams()
	s.engine.Close()
	return s.store.Close()
}
