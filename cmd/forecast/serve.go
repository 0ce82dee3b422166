package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/ingest"
	"github.com/pricepally/demandcast/internal/pipeline"
	otelx "github.com/pricepally/demandcast/pkg/otel"
)

// triggerRequest is the body of a run trigger. Input may override the
// default extract path configured at startup.
type triggerRequest struct {
	Input string `json:"input,omitempty"`
}

type triggerResponse struct {
	Summary  *api.RunSummary     `json:"summary"`
	Failures []api.FailureRecord `json:"failures,omitempty"`
}

type server struct {
	engine       *pipeline.Engine
	defaultInput string
	limiter      *rate.Limiter
	logger       *log.Logger

	// one run at a time; the engine is reentrant but concurrent runs over
	// the same extract would only contend for the sink
	runMu sync.Mutex
}

func serve(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	ctx := cmd.Context()

	tp, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	if tp != nil {
		defer otelx.Shutdown(context.Background(), tp)
	}

	engine, out, journal, err := buildEngine(logger)
	if err != nil {
		return err
	}
	defer out.Close()
	if journal != nil {
		defer journal.Close()
	}

	triggerRate := getEnvInt("TRIGGER_RATE", 2)
	srv := &server{
		engine:       engine,
		defaultInput: getEnv("INPUT_PATH", inputPath),
		limiter:      rate.NewLimiter(rate.Limit(triggerRate), triggerRate*2),
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/forecast/run", srv.handleTrigger)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // a triggered run responds when it finishes
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Printf("starting forecast service on port %s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-shutdown
	logger.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	logger.Println("service stopped")
	return nil
}

func (s *server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	var req triggerRequest
	if r.Body != nil {
		// an empty body means "use the default extract"
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	input := req.Input
	if input == "" {
		input = s.defaultInput
	}
	if input == "" {
		http.Error(w, "No input configured: set INPUT_PATH or pass {\"input\": ...}", http.StatusBadRequest)
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	population, err := ingest.ReadFile(input)
	if err != nil {
		s.logger.Printf("trigger failed to load %s: %v", input, err)
		http.Error(w, "Failed to load input: "+err.Error(), http.StatusBadRequest)
		return
	}

	summary, failures, err := s.engine.Run(r.Context(), population)
	if err != nil {
		s.logger.Printf("run aborted: %v", err)
		http.Error(w, "Run aborted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(triggerResponse{Summary: summary, Failures: failures})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
