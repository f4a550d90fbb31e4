package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/turtacn/clusterkeys/internal/application/keys"
	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/internal/infrastructure/audit"
	"github.com/turtacn/clusterkeys/internal/infrastructure/kms"
	"github.com/turtacn/clusterkeys/internal/infrastructure/monitoring"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence"
	grpcserver "github.com/turtacn/clusterkeys/internal/interfaces/grpc"
	"github.com/turtacn/clusterkeys/internal/interfaces/http"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/handlers"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})

	// Load config
	loader := config.NewLoader(*configPath, startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	appLogger = appLogger.WithFields(
		logger.String("purpose", cfg.Keys.Purpose),
		logger.String("node_id", cfg.Keys.NodeID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	tracer, err := monitoring.NewTracingManager(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracer", err)
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// Initialize key store
	store, err := persistence.OpenStore(ctx, cfg, metrics, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to open key store", err)
	}

	// Initialize key material source
	source, err := kms.NewSource(cfg.Store.KeySource, cfg.Vault, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create key source", err)
	}

	// Initialize audit publisher
	var publisher service.KeyEventPublisher = service.NoopKeyEventPublisher{}
	var producer *audit.KafkaProducer
	if cfg.Kafka.Enabled {
		producer = audit.NewKafkaProducer(cfg.Kafka, appLogger)
		publisher = producer
	}

	// Initialize key manager
	var clockOpts []keys.ClockOption
	if cfg.Keys.UseWallClock {
		clockOpts = append(clockOpts, keys.WithWallClock(time.Now))
	}
	clock := keys.NewVectorClock(clockOpts...)
	switches := keys.NewSwitches()
	if err := applyKillSwitch(switches, cfg.Keys.GenerationSuppressed); err != nil {
		appLogger.Fatal(ctx, "Failed to apply kill switch", err)
	}

	manager, err := keys.NewManager(keys.ManagerConfig{
		Purpose:               cfg.Keys.Purpose,
		RotationInterval:      cfg.Keys.RotationInterval,
		ValidationWaitTimeout: cfg.Keys.ValidationWaitTimeout,
		NodeID:                cfg.Keys.NodeID,
	}, store.Repository, source, clock,
		keys.WithLogger(appLogger),
		keys.WithMetrics(metrics),
		keys.WithPolicy(switches),
		keys.WithEventPublisher(publisher),
	)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create key manager", err)
	}
	manager.EnableKeyGenerator(cfg.Keys.GenerationEnabled)

	if err := manager.StartMonitoring(ctx); err != nil {
		appLogger.Fatal(ctx, "Failed to start key monitoring", err)
	}

	// Live reload of the generator flag and the kill switch
	loader.Watch(func(next *config.Config) {
		manager.EnableKeyGenerator(next.Keys.GenerationEnabled)
		if err := applyKillSwitch(switches, next.Keys.GenerationSuppressed); err != nil {
			appLogger.Warn(ctx, "Failed to apply kill switch", logger.Err(err))
		}
		appLogger.SetLevel(logger.ParseLevel(next.Log.Level))
	})

	// Initialize HTTP handlers and router
	keyHandler := handlers.NewKeyHandler(manager, switches, clock, appLogger)
	healthHandler := handlers.NewHealthHandler(manager, store.Checkers, appLogger)
	router := http.NewRouter(cfg.Server, cfg.Admin, appLogger, keyHandler, healthHandler, metrics, registry)

	go func() {
		if err := router.Start(); err != nil {
			appLogger.Error(ctx, "HTTP server failed", err)
			stop()
		}
	}()

	// Initialize and start gRPC health server
	reporter := grpcserver.NewHealthReporter(manager, time.Second, appLogger)
	go reporter.Run(ctx)
	grpcSrv, err := startGRPCServer(cfg, reporter, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to listen for gRPC", err)
	}

	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutting down")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = constants.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	manager.StopMonitoring()
	if err := router.Stop(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err)
	}
	grpcSrv.Stop()
	reporter.Stop()
	if producer != nil {
		if err := producer.Close(); err != nil {
			appLogger.Error(shutdownCtx, "Kafka producer close failed", err)
		}
	}
	store.Close()
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "Tracer shutdown failed", err)
	}
	appLogger.Info(shutdownCtx, "Shutdown complete")
}

func startGRPCServer(cfg *config.Config, reporter *grpcserver.HealthReporter, log logger.Logger) (*grpcserver.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		return nil, err
	}

	srv := grpcserver.NewServer(reporter, log)
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error(context.Background(), "gRPC server failed", err)
		}
	}()

	log.Info(context.Background(), fmt.Sprintf("gRPC server listening on %s", lis.Addr()))
	return srv, nil
}

// applyKillSwitch mirrors keys.generation_suppressed onto the generation kill switch.
func applyKillSwitch(switches *keys.Switches, suppressed bool) error {
	if err := switches.Set(keys.SwitchDisableKeyGeneration, suppressed); err != nil {
		return fmt.Errorf("apply generation kill switch: %w", err)
	}
	return nil
}

//Personal.AI order the ending
