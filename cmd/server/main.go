package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/pdftrans/pkg/config"
	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/server"
	"github.com/dasmlab/pdftrans/pkg/service"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

// healthService is the gRPC health service name reporting provider health.
const healthService = "pdftrans.Translator"

var (
	configPath = flag.String("config", "", "Path to a YAML configuration file")
	envFile    = flag.String("env-file", ".env", "Environment file to load if present")

	httpPort = flag.Int("http-port", config.DefaultHTTPPort, "HTTP server port")
	grpcPort = flag.Int("grpc-port", config.DefaultGRPCPort, "gRPC health server port")
	workDir  = flag.String("work-dir", "", "Directory for uploads and intermediate files (default: system temp)")

	sourceLang  = flag.String("source-lang", "", "Default source language")
	targetLang  = flag.String("target-lang", "", "Default target language")
	engine      = flag.String("engine", "", "Paragraph provider: doubao, zhipu, openai, ollama, libretranslate")
	tableEngine = flag.String("table-engine", "", "Table provider (default: same as -engine)")
	converter   = flag.String("converter", "", "PDF converter: pdf2docx, libreoffice, command, builtin")
	concurrency = flag.Int("concurrency", 0, "In-flight provider calls per phase")

	healthInterval = flag.Duration("health-interval", time.Minute, "How often to probe the providers")

	logLevel = flag.String("log-level", "", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).WithField("file", *envFile).Warn("Failed to load environment file")
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	paragraph, table := cfg.ParagraphProvider(), cfg.TableProvider()
	logger.WithFields(logrus.Fields{
		"http_port":        cfg.Server.HTTPPort,
		"grpc_port":        cfg.Server.GRPCPort,
		"source_lang":      cfg.SourceLang,
		"target_lang":      cfg.TargetLang,
		"paragraph_engine": paragraph.Engine,
		"table_engine":     table.Engine,
		"converter":        cfg.Converter.Engine,
		"log_level":        level.String(),
	}).Info("Starting pdftrans server")

	runner, err := service.NewRunner(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create translator")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	logger.Info("Checking provider health...")
	healthy := runner.CheckHealth(ctx) == nil
	cancel()
	if !healthy {
		logger.Warn("Provider health check failed; jobs will keep source text until the provider recovers")
	} else {
		logger.Info("Provider health check passed")
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"port": cfg.Server.GRPCPort,
		}).Fatal("Failed to listen on port")
	}

	opts := []grpc.ServerOption{
		grpc.Creds(insecure.NewCredentials()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	}
	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthService, servingStatus(healthy))
	reflection.Register(s)

	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	defer jobsCancel()

	queue := service.NewJobQueue(cfg.Server.WorkDir, logger)
	queue.SetProcessor(service.NewJobProcessor(jobsCtx, runner, logger))

	httpServer := server.NewHTTPServer(queue, logger, server.Options{
		Port:           cfg.Server.HTTPPort,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	go func() {
		ticker := time.NewTicker(cfg.Server.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				queue.CleanupOldJobs(cfg.Server.JobTTL)
			case <-jobsCtx.Done():
				return
			}
		}
	}()
	logger.WithFields(logrus.Fields{
		"cleanup_interval": cfg.Server.CleanupInterval.String(),
		"job_ttl":          cfg.Server.JobTTL.String(),
	}).Info("Started job cleanup goroutine")

	go func() {
		ticker := time.NewTicker(*healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(jobsCtx, 30*time.Second)
				err := runner.CheckHealth(ctx)
				cancel()
				if err != nil {
					logger.WithError(err).Warn("Provider health check failed")
				}
				healthServer.SetServingStatus(healthService, servingStatus(err == nil))
				logger.WithFields(logrus.Fields{
					"jobs":    queue.Len(),
					"healthy": err == nil,
				}).Debug("Server status")
			case <-jobsCtx.Done():
				return
			}
		}
	}()

	errChan := make(chan error, 2)
	go func() {
		logger.WithFields(logrus.Fields{
			"port": cfg.Server.GRPCPort,
		}).Info("gRPC health server listening")
		if err := s.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Fatal("Server error")
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("HTTP shutdown incomplete")
		}
		jobsCancel()

		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			logger.Info("Server stopped gracefully")
		case <-ctx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			s.Stop()
		}
	}
}

// loadConfig layers defaults, the YAML file, the environment and the flags
// that were set explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	var ferr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-port":
			cfg.Server.HTTPPort = *httpPort
		case "grpc-port":
			cfg.Server.GRPCPort = *grpcPort
		case "work-dir":
			cfg.Server.WorkDir = *workDir
		case "source-lang":
			cfg.SourceLang = *sourceLang
		case "target-lang":
			cfg.TargetLang = *targetLang
		case "engine":
			e, err := translate.ParseEngineType(*engine)
			if err != nil {
				ferr = err
				return
			}
			cfg.Paragraph.Engine = e
		case "table-engine":
			e, err := translate.ParseEngineType(*tableEngine)
			if err != nil {
				ferr = err
				return
			}
			cfg.Table.Engine = e
		case "converter":
			e, err := convert.ParseEngine(*converter)
			if err != nil {
				ferr = err
				return
			}
			cfg.Converter.Engine = e
		case "concurrency":
			cfg.Concurrency.Paragraphs, cfg.Concurrency.Tables = *concurrency, *concurrency
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if ferr != nil {
		return nil, ferr
	}
	cfg.ResolveKeys(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func servingStatus(ok bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if ok {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
