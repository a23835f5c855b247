package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"lootpool/config"
	"lootpool/core"
	"lootpool/indexer"
	"lootpool/observability/logging"
	"lootpool/observability/metrics"
	telemetry "lootpool/observability/otel"
	"lootpool/rpc"
	"lootpool/rpc/middleware"
	"lootpool/services/devoracle"
	"lootpool/storage"
)

const serviceName = "lootpoold"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml or .yaml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(logging.Options{
		Service:    serviceName,
		Env:        cfg.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("Failed to initialise telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.String("path", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	d, err := newDaemon(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("Failed to start daemon", slog.Any("error", err))
		os.Exit(1)
	}
	defer d.Close()

	ln, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		logger.Error("Failed to listen", slog.String("address", cfg.RPCAddress), slog.Any("error", err))
		os.Exit(1)
	}
	if err := d.Serve(ctx, ln); err != nil {
		logger.Error("Daemon stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Daemon stopped")
}

// daemon owns the node and the services hanging off its event stream.
type daemon struct {
	node     *core.Node
	server   *rpc.Server
	oracle   *devoracle.Oracle
	mirror   *indexer.Mirror
	mirrorDB *gorm.DB
	logger   *slog.Logger
}

func newDaemon(ctx context.Context, cfg *config.Config, db storage.Database, logger *slog.Logger) (*daemon, error) {
	genesis, err := cfg.Genesis()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	node, err := core.NewNode(db,
		core.WithLogger(logger),
		core.WithMetrics(metrics.NewPoolMetrics(reg)),
		core.WithTracer(telemetry.Tracer()),
	)
	if err != nil {
		return nil, err
	}

	mirrorDB, err := indexer.Open(cfg.IndexerDSN)
	if err != nil {
		return nil, err
	}
	mirror := indexer.NewMirror(mirrorDB, logger.With(slog.String("component", "indexer")))
	node.Subscribe(mirror)

	d := &daemon{node: node, mirror: mirror, mirrorDB: mirrorDB, logger: logger}

	done, err := node.Bootstrapped()
	if err != nil {
		d.Close()
		return nil, err
	}
	if err := node.Bootstrap(ctx, genesis); err != nil {
		d.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if !done {
		if err := seedMirror(ctx, node, mirror); err != nil {
			d.Close()
			return nil, err
		}
		logger.Info("genesis applied", slog.Int("admins", len(genesis.Admins)), slog.Int("collections", len(genesis.Collections)))
	}

	if cfg.DevOracle.Enabled {
		oracle, err := devoracle.New(node, devoracle.Config{
			Address: genesis.Oracle,
			Secret:  cfg.DevOracle.Secret,
			Delay:   cfg.DevOracle.Delay.Duration,
		}, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		node.Subscribe(oracle)
		d.oracle = oracle
		logger.Warn("development oracle enabled; randomness is predictable")
	}

	d.server, err = rpc.NewServer(node, mirror, rpc.ServerConfig{
		Address:      cfg.RPCAddress,
		ReadTimeout:  cfg.RPCReadTimeout.Duration,
		WriteTimeout: cfg.RPCWriteTimeout.Duration,
		CORSOrigins:  cfg.CORSOrigins,
		RateLimit: middleware.RateLimit{
			RatePerSecond: cfg.RateLimit.RatePerSecond,
			Burst:         cfg.RateLimit.Burst,
		},
		Auth: middleware.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		Registry: reg,
		Tracer:   telemetry.Tracer(),
	}, logger.With(slog.String("component", "rpc")))
	if err != nil {
		d.Close()
		return nil, err
	}
	if cfg.Auth.HMACSecret == "" {
		logger.Warn("rpc authentication disabled; callers are taken from the " + middleware.CallerHeader + " header")
	}
	return d, nil
}

// seedMirror copies the parameters genesis wrote into the mirror's
// GlobalState, since bootstrap writes them without events.
func seedMirror(ctx context.Context, node *core.Node, mirror *indexer.Mirror) error {
	fees, err := node.Fees()
	if err != nil {
		return err
	}
	params, err := node.RandomnessParams()
	if err != nil {
		return err
	}
	return mirror.SeedParams(ctx, fees.DrawFee, fees.FeeRecipient, fees.RandomnessFee, params.Oracle)
}

// Serve runs the dev oracle, if any, and the HTTP API until ctx is canceled.
func (d *daemon) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	oracleDone := make(chan error, 1)
	if d.oracle != nil {
		go func() { oracleDone <- d.oracle.Run(ctx) }()
	} else {
		close(oracleDone)
	}

	err := d.server.Serve(ctx, ln)
	cancel()
	if oerr := <-oracleDone; oerr != nil && !errors.Is(oerr, context.Canceled) {
		d.logger.Warn("dev oracle stopped", slog.Any("error", oerr))
	}
	return err
}

// Close releases the mirror database.
func (d *daemon) Close() {
	if d.mirrorDB == nil {
		return
	}
	if sqlDB, err := d.mirrorDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	d.mirrorDB = nil
}
