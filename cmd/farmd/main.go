package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"farmmarket/config"
	"farmmarket/core"
	"farmmarket/observability/logging"
	telemetry "farmmarket/observability/otel"
	"farmmarket/rpc"
)

const serviceName = "farmd"

var version = "dev"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml or .yaml)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "farmd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("FARM_ENV"))
	if env == "" {
		env = cfg.Logging.Env
	}
	logger, logCloser := logging.Setup(serviceName, env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer func() { _ = logCloser.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Start(ctx, serviceName, version, env, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	node, err := core.NewNode(cfg, logger)
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer node.Close()

	jwtSecret := cfg.JWTSecret()
	if jwtSecret == "" {
		logger.Warn("RPC JWT secret not set; authenticated methods are disabled", "env", cfg.RPC.JWTSecretEnv)
	}
	server := rpc.NewServer(node.Engine(), node.Journal(), rpc.ServerConfig{
		ListenAddress:      cfg.RPC.ListenAddress,
		JWTSecret:          jwtSecret,
		JWTIssuer:          cfg.RPC.JWTIssuer,
		JWTAudience:        cfg.RPC.JWTAudience,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		FaucetEnabled:      cfg.RPC.FaucetEnabled,
		FaucetMaxAmount:    cfg.RPC.FaucetMaxAmount,
		ReadTimeout:        cfg.ReadTimeout(),
		WriteTimeout:       cfg.WriteTimeout(),
	}, logger.With("component", "rpc"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		node.Run(ctx)
	}()

	logger.Info("farmd started",
		"backend", cfg.Node.Backend,
		"dataDir", cfg.Node.DataDir,
		"lockOrderOnDispute", cfg.Market.LockOrderOnDispute,
		"sweeper", node.Sweeper() != nil)

	serveErr := server.Serve(ctx)
	stop()
	wg.Wait()
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("rpc server: %w", serveErr)
	}
	logger.Info("farmd stopped")
	return nil
}
