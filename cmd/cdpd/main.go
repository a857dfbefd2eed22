package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cdpchain/cmd/internal/secret"
	"cdpchain/config"
	gatewayconfig "cdpchain/gateway/config"
	"cdpchain/observability/logging"
	telemetry "cdpchain/observability/otel"
	"cdpchain/storage"
)

const gatewaySecretEnv = "CDP_GATEWAY_HMAC_SECRET"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cdpd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath string
		memdb   bool
	)
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to the node configuration")
	flag.BoolVar(&memdb, "memdb", false, "keep state in memory instead of LevelDB")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := cfg.Log.Env
	if override := strings.TrimSpace(os.Getenv("CDP_ENV")); override != "" {
		env = override
	}
	logger, logCloser, err := logging.SetupWithOptions(logging.Options{
		Service: "cdpd",
		Env:     env,
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "cdpd",
		Environment: env,
		Network:     cfg.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg.DataDir, memdb)
	if err != nil {
		return err
	}
	defer db.Close()

	gwPath := resolvePath(filepath.Dir(cfgPath), cfg.GatewayConfig)
	gwCfg, err := gatewayconfig.LoadWithSecret(gwPath, secret.NewSource(gatewaySecretEnv, "gateway auth secret").Get)
	if err != nil {
		return fmt.Errorf("load gateway config: %w", err)
	}
	logger.Info("gateway config loaded",
		slog.String("path", gwPath),
		slog.String("listen", gwCfg.ListenAddress),
		logging.MaskField("hmacSecret", gwCfg.Auth.HMACSecret))

	n, err := newNode(cfg, db, logger, gwCfg.EventBuffer)
	if err != nil {
		return err
	}
	router, err := n.handler(gwCfg)
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	handler := router
	if gwCfg.Observability.Tracing {
		handler = otelhttp.NewHandler(router, "cdp-gateway")
	}

	tlsConfig, err := buildTLSConfig(filepath.Dir(gwPath), gwCfg.Security)
	if err != nil {
		return fmt.Errorf("configure TLS: %w", err)
	}
	server := &http.Server{
		Addr:         gwCfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  gwCfg.ReadTimeout,
		WriteTimeout: gwCfg.WriteTimeout,
		IdleTimeout:  gwCfg.IdleTimeout,
		TLSConfig:    tlsConfig,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", gwCfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
			listener = tls.NewListener(listener, tlsConfig)
		}
		logger.Info("cdp gateway listening",
			slog.String("address", scheme+"://"+listener.Addr().String()),
			slog.String("network", cfg.NetworkName),
			slog.Bool("auth", gwCfg.Auth.Enabled))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("cdpd stopped")
	return nil
}

func openDatabase(dataDir string, memdb bool) (storage.Database, error) {
	if memdb {
		return storage.NewMemDB(), nil
	}
	path := filepath.Join(dataDir, "state")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return db, nil
}

func buildTLSConfig(baseDir string, sec gatewayconfig.SecurityConfig) (*tls.Config, error) {
	certPath := resolvePath(baseDir, sec.TLSCertFile)
	keyPath := resolvePath(baseDir, sec.TLSKeyFile)
	if certPath == "" && keyPath == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// resolvePath interprets relative paths against baseDir. Empty stays empty.
func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	if baseDir == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(baseDir, trimmed)
}
