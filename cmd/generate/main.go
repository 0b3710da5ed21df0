// Command generate produces the synthetic UHS dataset: facility metadata,
// the per-timestep time series, and per-cycle summaries, written as CSV
// files and optionally published to Kafka.
//
// Usage:
//
//	go run ./cmd/generate -config settings.yaml -out data/out
//
// Runtime behavior (logging, optional HTTP endpoints, optional Kafka sink)
// is configured through the environment: LOG_LEVEL, LOG_FORMAT, HTTP_ADDR,
// KAFKA_BROKERS, KAFKA_TOPIC.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/uhs-mrv-datagen/internal/adapter/csvout"
	httpadapter "github.com/couchcryptid/uhs-mrv-datagen/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/uhs-mrv-datagen/internal/adapter/kafka"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/config"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/observability"
	"github.com/couchcryptid/uhs-mrv-datagen/internal/sim"
)

// publishBatchSize bounds the record count per Kafka WriteMessages call.
const publishBatchSize = 500

func main() {
	configPath := flag.String("config", "", "settings YAML file (embedded defaults when empty)")
	outDir := flag.String("out", "data/out", "output directory for the CSV tables")
	flag.Parse()

	rt, err := config.LoadRuntime()
	if err != nil {
		slog.Error("failed to load runtime settings", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(rt.LogLevel, rt.LogFormat)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	runner := sim.NewRunner(cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The HTTP endpoints are opt-in; plain batch invocations skip them.
	var srv *httpadapter.Server
	if rt.HTTPAddr != "" {
		srv = httpadapter.NewServer(rt.HTTPAddr, runner, runner, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	code := run(ctx, rt, runner, logger, metrics, *outDir)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	os.Exit(code)
}

func run(ctx context.Context, rt *config.Runtime, runner *sim.Runner, logger *slog.Logger, metrics *observability.Metrics, outDir string) int {
	out, err := runner.Run(ctx)
	if err != nil {
		logger.Error("generation run failed", "error", err)
		return 1
	}

	writer, err := csvout.NewWriter(outDir)
	if err != nil {
		logger.Error("failed to prepare output directory", "error", err)
		return 1
	}
	if err := writer.WriteFacilities(out.Facilities); err != nil {
		logger.Error("failed to write facility metadata", "error", err)
		return 1
	}
	if err := writer.WriteTimesteps(out.Timesteps); err != nil {
		logger.Error("failed to write facility timeseries", "error", err)
		return 1
	}
	if err := writer.WriteCycles(out.Cycles); err != nil {
		logger.Error("failed to write cycle summaries", "error", err)
		return 1
	}
	logger.Info("dataset written", "dir", outDir, "run_id", out.RunID)

	if rt.KafkaEnabled() {
		if err := publish(ctx, rt, logger, metrics, out); err != nil {
			logger.Error("kafka publish failed", "error", err)
			return 1
		}
	}
	return 0
}

func publish(ctx context.Context, rt *config.Runtime, logger *slog.Logger, metrics *observability.Metrics, out *sim.Output) error {
	publisher := kafkaadapter.NewPublisher(rt, logger, metrics)
	defer publisher.Close()

	for start := 0; start < len(out.Timesteps); start += publishBatchSize {
		end := min(start+publishBatchSize, len(out.Timesteps))
		if err := publisher.PublishTimesteps(ctx, out.RunID, out.Timesteps[start:end]); err != nil {
			return err
		}
	}
	logger.Info("timestep records published", "topic", rt.KafkaTopic, "count", len(out.Timesteps))
	return nil
}
