// Command forecast runs the weekly demand forecast engine, either as a
// one-shot batch over a CSV extract or as a long-lived service with an HTTP
// trigger endpoint.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/calendar"
	"github.com/pricepally/demandcast/internal/ingest"
	"github.com/pricepally/demandcast/internal/metrics"
	"github.com/pricepally/demandcast/internal/pipeline"
	"github.com/pricepally/demandcast/internal/runlog"
	"github.com/pricepally/demandcast/internal/sink"
	otelx "github.com/pricepally/demandcast/pkg/otel"
)

var (
	inputPath  string
	outputPath string
)

var rootCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Adaptive weekly demand forecasting engine",
	Long: `forecast selects a forecasting method per product/UOM/sales-type series,
fits one shared regression model over the eligible fleet and produces
multi-week demand forecasts with per-series fault isolation.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one forecast pass over a weekly CSV extract",
	RunE:  runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an HTTP trigger endpoint with metrics and health checks",
	RunE:  serve,
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "weekly time-series CSV (required)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path for csv/memory sinks")
	runCmd.MarkFlagRequired("input")

	serveCmd.Flags().StringVarP(&inputPath, "input", "i", "", "default weekly time-series CSV for triggered runs")

	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runOnce(cmd *cobra.Command, args []string) error {
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

	population, err := ingest.ReadFile(inputPath)
	if err != nil {
		return err
	}
	logger.Printf("loaded %d series from %s", len(population), inputPath)

	summary, _, err := engine.Run(ctx, population)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	if summary.Failed > 0 {
		logger.Printf("run completed with %d failed series; see journal for details", summary.Failed)
	}
	return nil
}

// buildEngine wires the engine from the environment: sink backend, journal
// directory, parameters and metrics.
func buildEngine(logger *log.Logger) (*pipeline.Engine, sink.Sink, *runlog.Journal, error) {
	params, err := buildParams()
	if err != nil {
		return nil, nil, nil, err
	}

	out, err := buildSink()
	if err != nil {
		return nil, nil, nil, err
	}

	var journal *runlog.Journal
	if dir := getEnv("RUN_LOG_DIR", "data/runlog"); dir != "" {
		journal, err = runlog.Open(dir)
		if err != nil {
			out.Close()
			return nil, nil, nil, err
		}
	}

	engine, err := pipeline.New(params, out, pipeline.Options{
		Metrics: metrics.New(nil),
		Journal: journal,
		Logger:  logger,
	})
	if err != nil {
		out.Close()
		if journal != nil {
			journal.Close()
		}
		return nil, nil, nil, err
	}
	return engine, out, journal, nil
}

func buildParams() (api.Params, error) {
	params := api.DefaultParams()
	params.Horizon = getEnvInt("FORECAST_HORIZON", params.Horizon)
	params.MinModelRows = getEnvInt("MIN_MODEL_ROWS", params.MinModelRows)
	params.InactiveGapWeeks = getEnvInt("INACTIVE_GAP_WEEKS", params.InactiveGapWeeks)
	params.Workers = getEnvInt("FORECAST_WORKERS", params.Workers)
	params.SmoothingAlpha = getEnvFloat("SMOOTHING_ALPHA", params.SmoothingAlpha)
	params.CVStableThreshold = getEnvFloat("CV_STABLE_THRESHOLD", params.CVStableThreshold)
	params.TrendThreshold = getEnvFloat("TREND_THRESHOLD", params.TrendThreshold)

	if asOf := getEnv("AS_OF_DATE", ""); asOf != "" {
		t, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return params, fmt.Errorf("invalid AS_OF_DATE: %w", err)
		}
		params.AsOf = calendar.FromDate(t)
	}

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func buildSink() (sink.Sink, error) {
	backend := getEnv("SINK_BACKEND", "csv")

	switch backend {
	case "memory":
		snapshot := outputPath
		if snapshot == "" {
			snapshot = getEnv("SINK_SNAPSHOT", "data/forecasts.json")
		}
		return sink.NewMemorySink(snapshot), nil
	case "csv":
		path := outputPath
		if path == "" {
			path = getEnv("SINK_CSV_PATH", "data/forecasts.csv")
		}
		return sink.NewCSVSink(path)
	case "redis":
		addr := getEnv("REDIS_ADDR", "localhost:6379")
		password := getEnv("REDIS_PASSWORD", "")
		db := getEnvInt("REDIS_DB", 0)
		ttlDays := getEnvInt("SINK_TTL_DAYS", 30)
		return sink.NewRedisSink(addr, password, db, time.Duration(ttlDays)*24*time.Hour)
	case "postgres":
		connStr := getEnv("POSTGRES_CONN", "")
		if connStr == "" {
			return nil, fmt.Errorf("POSTGRES_CONN is required when SINK_BACKEND=postgres")
		}
		return sink.NewPostgresSink(connStr)
	default:
		return nil, fmt.Errorf("unknown SINK_BACKEND: %s", backend)
	}
}

func setupTracing(ctx context.Context) (*sdktrace.TracerProvider, error) {
	if getEnv("OTEL_ENABLED", "false") != "true" {
		return nil, nil
	}
	config := otelx.DefaultConfig("demandcast")
	config.CollectorEndpoint = getEnv("OTEL_COLLECTOR_ENDPOINT", config.CollectorEndpoint)
	config.Environment = getEnv("DEPLOY_ENV", config.Environment)
	provider, err := otelx.InitTracer(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	return provider, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
