// Package main provides the entry point for meshsidecar.
//
// meshsidecar is a protocol-translating data-access proxy: it speaks
// Memcached (text and binary), Redis RESP, a message-queue text
// protocol, and KVector (a RESP-like vector-store protocol) on its
// front end, and fans each request out to Memcached, Redis, MQ, and
// MySQL backends selected by a control-plane-pushed shard topology.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kvmesh/sidecar/internal/controlplane"
	"github.com/kvmesh/sidecar/internal/distribution"
	"github.com/kvmesh/sidecar/internal/dnscache"
	"github.com/kvmesh/sidecar/internal/infra/buildinfo"
	"github.com/kvmesh/sidecar/internal/infra/confloader"
	"github.com/kvmesh/sidecar/internal/infra/shutdown"
	"github.com/kvmesh/sidecar/internal/proxy"
	"github.com/kvmesh/sidecar/internal/secrets"
	"github.com/kvmesh/sidecar/internal/server/config"
	"github.com/kvmesh/sidecar/internal/server/localserver"
	"github.com/kvmesh/sidecar/internal/telemetry/logger"
	"github.com/kvmesh/sidecar/internal/telemetry/metric"
	"github.com/kvmesh/sidecar/internal/topology"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting meshsidecar",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	masterSecret, err := loadMasterSecret(cfg)
	if err != nil {
		return fmt.Errorf("load master secret: %w", err)
	}
	store := secrets.NewStore(masterSecret)

	dns := dnscache.New(dnscache.Config{Logger: slogLogger})
	shards := topology.NewShards()
	coreSource := controlplane.NewCoreSource(shards, dns, store)

	cpServer, err := controlplane.New(controlplane.Config{
		Addr:   cfg.ControlPlane.Addr,
		Source: coreSource,
		Logger: slogLogger,
	})
	if err != nil {
		return fmt.Errorf("init control plane: %w", err)
	}

	hasher := distribution.HasherByName(cfg.Routing.Hasher)
	dist := distribution.DistributorByName(cfg.Routing.Distributor)
	router := proxy.NewRouter(shards, dist)

	metrics := metric.Global()

	draining := &atomic.Bool{}

	var servers []*proxy.Server
	var backends []*proxy.Backend

	if cfg.Server.Redis.Addr != "" {
		backend := proxy.NewBackend("redis", cfg.Backend.SlotsPerStream, cfg.Backend.DialTimeout, dns, proxy.RedisFrameReader, metrics, slogLogger)
		backends = append(backends, backend)
		handler := proxy.NewRedisHandler(router, backend, metrics, hasher, slogLogger)
		servers = append(servers, proxy.New(cfg.Server.Redis.Addr, handler, draining, slogLogger))
	}

	if cfg.Server.Mctext.Addr != "" {
		backend := proxy.NewBackend("mctext", cfg.Backend.SlotsPerStream, cfg.Backend.DialTimeout, dns, proxy.MctextFrameReader, metrics, slogLogger)
		backends = append(backends, backend)
		handler := proxy.NewMctextHandler(router, backend, metrics, hasher, slogLogger)
		servers = append(servers, proxy.New(cfg.Server.Mctext.Addr, handler, draining, slogLogger))
	}

	if cfg.Server.Mcbinary.Addr != "" {
		backend := proxy.NewBackend("mcbinary", cfg.Backend.SlotsPerStream, cfg.Backend.DialTimeout, dns, proxy.McbinaryFrameReader, metrics, slogLogger)
		backends = append(backends, backend)
		handler := proxy.NewMcbinaryHandler(router, backend, metrics, hasher, slogLogger)
		servers = append(servers, proxy.New(cfg.Server.Mcbinary.Addr, handler, draining, slogLogger))
	}

	if cfg.Server.Mq.Addr != "" {
		backend := proxy.NewBackend("mq", cfg.Backend.SlotsPerStream, cfg.Backend.DialTimeout, dns, proxy.MqFrameReader, metrics, slogLogger)
		backends = append(backends, backend)
		handler := proxy.NewMqHandler(router, backend, metrics, hasher, slogLogger)
		servers = append(servers, proxy.New(cfg.Server.Mq.Addr, handler, draining, slogLogger))
	}

	if cfg.Server.Kvector.Addr != "" {
		strategy := topology.NewMonthlyVectorStrategy(cfg.MySQL.TablePrefix)
		kvHandler := proxy.NewKvectorHandler(router, strategy, coreSource, store, cfg.MySQL.CredentialLabel, cfg.MySQL.DialTimeout, metrics, hasher, slogLogger)
		servers = append(servers, proxy.New(cfg.Server.Kvector.Addr, kvHandler, draining, slogLogger))
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	reload := func() error {
		log.Info("reload requested, topology is refreshed via control-plane pushes only")
		return nil
	}
	localHandler := localserver.NewHandler(shards, dns, shutdownHandler, reload, draining)
	localSrv := localserver.New(cfg.Server.Local.Path, localHandler)

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	}

	// Register shutdown hooks in reverse of startup order.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down local management socket")
		return localSrv.Shutdown(ctx)
	})
	if metricsSrv != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return metricsSrv.Shutdown(ctx)
		})
	}
	for _, srv := range servers {
		srv := srv
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		})
	}
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down control plane")
		return cpServer.Shutdown(ctx)
	})
	for _, b := range backends {
		b := b
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			return b.Close()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		cancel()
		return nil
	})

	go func() {
		if err := dns.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("dns cache stopped", "error", err)
		}
	}()

	go func() {
		log.Info("control plane listening", "addr", cfg.ControlPlane.Addr)
		if err := cpServer.ListenAndServe(); err != nil {
			log.Error("control plane server error", "error", err)
		}
	}()

	if metricsSrv != nil {
		go func() {
			log.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	go func() {
		log.Info("local management socket listening", "path", cfg.Server.Local.Path)
		if err := localSrv.ListenAndServe(); err != nil {
			log.Error("local server error", "error", err)
		}
	}()

	for i, srv := range servers {
		i, srv := i, srv
		go func() {
			log.Info("protocol front end listening", "index", i)
			if err := srv.ListenAndServe(); err != nil {
				log.Error("protocol front end stopped", "error", err)
			}
		}()
	}

	log.Info("meshsidecar started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("meshsidecar stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment, starting
// from config.Default and applying file then env overrides.
func loadConfig(configFile string) (*config.MeshConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger. It returns both the
// logger.Logger interface (used for process lifecycle messages here)
// and a slog.Logger for components that take one directly.
func initLogger(cfg *config.MeshConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, slog.Default(), nil
}

// loadMasterSecret reads and base64-decodes the at-rest encryption
// master secret from the environment variable named by the
// configuration. It is never read from the config file itself.
func loadMasterSecret(cfg *config.MeshConfig) ([]byte, error) {
	raw := os.Getenv(cfg.Security.MasterSecretEnv)
	if raw == "" {
		return nil, fmt.Errorf("environment variable %s is not set", cfg.Security.MasterSecretEnv)
	}
	return decodeMasterSecret(raw)
}

// decodeMasterSecret base64-decodes s, tolerating a trailing newline
// left over from shell-sourced env files.
func decodeMasterSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	secret, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("master secret is not valid base64: %w", err)
	}
	return secret, nil
}
