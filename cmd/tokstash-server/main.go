package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/yndnr/tokstash-go/internal/core/service"
	"github.com/yndnr/tokstash-go/internal/infra/buildinfo"
	"github.com/yndnr/tokstash-go/internal/infra/confloader"
	"github.com/yndnr/tokstash-go/internal/infra/shutdown"
	"github.com/yndnr/tokstash-go/internal/server/config"
	"github.com/yndnr/tokstash-go/internal/server/httpserver"
	"github.com/yndnr/tokstash-go/internal/server/httpserver/handler"
	"github.com/yndnr/tokstash-go/internal/server/ratelimit"
	"github.com/yndnr/tokstash-go/internal/server/redisserver"
	"github.com/yndnr/tokstash-go/internal/storage"
	"github.com/yndnr/tokstash-go/internal/storage/memory"
	"github.com/yndnr/tokstash-go/internal/storage/redisstore"
	"github.com/yndnr/tokstash-go/internal/telemetry/logger"
	"github.com/yndnr/tokstash-go/internal/telemetry/metric"
	"github.com/yndnr/tokstash-go/pkg/crypto/adaptive"
)

// limiterSweepInterval is how often idle per-client limiters are dropped.
const limiterSweepInterval = time.Minute

// cipherPurpose separates the at-rest key from any other key derived
// from the same secret.
const cipherPurpose = "tokstash-record-v1"

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
		overrides   assignments
	)
	flag.Var(&overrides, "set", "Override a config key, e.g. -set log.level=debug (repeatable)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tokstash-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := config.Load(*configFile, overrides...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if cfg.Log.Format == "text" {
		figure.NewFigure("tokstash", "cybermedium", true).Print()
		fmt.Println()
	}

	info := buildinfo.Get()
	log.Info("starting tokstash-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"backend", cfg.Storage.Backend)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := metric.NewRegistry()
	metrics.MustRegister(metric.NewBuildInfo(info.Version, info.Commit, runtime.Version()))

	backend, err := openBackend(ctx, cfg, log.Slog(), metrics)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}

	engine := service.NewEngine(backend.store,
		service.WithRecorder(metrics),
		service.WithLogger(log.Slog()))

	var limiter *ratelimit.Registry
	if cfg.Server.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
		go limiter.Run(ctx, limiterSweepInterval)
	}

	hostname := cfg.Server.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	proxies, err := httpserver.ParseTrustedProxies(cfg.Server.HTTP.TrustedProxies)
	if err != nil {
		return err
	}

	_, port, _ := net.SplitHostPort(cfg.Server.HTTP.Addr)
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Engine:         engine,
		Logger:         log.Slog(),
		Observer:       metrics,
		RateLimiter:    limiter,
		TrustedProxies: proxies,
		Hostname:       hostname,
		Version:        info.Version,
		Handler: handler.Options{
			Logger: log.Slog(),
			Diagnostics: handler.Diagnostics{
				MachineName: hostname,
				StartTime:   time.Now(),
				Port:        port,
				Version:     info.Version,
			},
			Ready:        backend.ready,
			Metrics:      metrics.Handler(),
			MaxBodyBytes: cfg.Server.HTTP.MaxBodyBytes,
		},
	})

	httpCfg := httpserver.Config{
		Addr:         cfg.Server.HTTP.Addr,
		TLSCertFile:  cfg.Server.HTTP.TLSCertFile,
		TLSKeyFile:   cfg.Server.HTTP.TLSKeyFile,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
		Logger:       log.Slog(),
	}
	httpSrv := httpserver.New(httpCfg, router)
	if err := httpSrv.Listen(); err != nil {
		backend.close()
		return fmt.Errorf("http listen: %w", err)
	}

	sd := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log.Slog())

	// Hooks run in reverse order: listeners first, then the backend.
	sd.OnShutdown("backend", func(context.Context) error {
		return backend.close()
	})
	sd.OnShutdown("background", func(context.Context) error {
		cancel()
		return nil
	})
	sd.OnShutdown("http", httpSrv.Shutdown)

	go func() {
		log.Info("HTTP server listening", "addr", httpSrv.Addr(), "tls", httpCfg.TLSEnabled())
		if err := httpSrv.Serve(); err != nil {
			log.Error("HTTP server error", "error", err)
			sd.Trigger("http server failed")
		}
	}()

	if cfg.Server.Redis.Enabled {
		respSrv := redisserver.New(&redisserver.Config{
			Address:      cfg.Server.Redis.Addr,
			ReadTimeout:  cfg.Server.Redis.ReadTimeout,
			WriteTimeout: cfg.Server.Redis.WriteTimeout,
			IdleTimeout:  cfg.Server.Redis.IdleTimeout,
			MaxBulkBytes: int(cfg.Server.HTTP.MaxBodyBytes),
		}, redisserver.NewCommandHandler(engine, limiter, metrics, log.Slog()), log.Slog())
		if err := respSrv.Start(ctx); err != nil {
			_ = httpSrv.Shutdown(context.Background())
			backend.close()
			return fmt.Errorf("redis listen: %w", err)
		}
		log.Info("Redis protocol server listening", "addr", respSrv.Addr())
		sd.OnShutdown("redis", respSrv.Shutdown)
	}

	if *configFile != "" {
		stop, err := watchConfig(*configFile, overrides, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sd.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := sd.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// initLogger creates the process logger and installs it as the default.
func initLogger(cfg *config.ServerConfig) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// backend bundles the opened record store with its lifecycle hooks.
type backend struct {
	store service.Store
	ready func(context.Context) error
	close func() error
}

// openBackend opens the configured record store.
func openBackend(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (*backend, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case config.BackendMemory:
		var opts []memory.Option
		if sc.Memory.ShardCount > 0 {
			opts = append(opts, memory.WithShardCount(sc.Memory.ShardCount))
		}
		store := memory.New(opts...)
		metrics.MustRegister(metric.NewCollector(store))
		return &backend{store: store, close: store.Close}, nil

	case config.BackendBadger:
		bc := storage.DefaultBadgerConfig(sc.Badger.DataDir)
		bc.InMemory = sc.Badger.InMemory
		bc.Partitions = sc.Partitions
		bc.SyncWrites = sc.Badger.SyncWrites
		if sc.Badger.GCInterval > 0 {
			bc.GCInterval = sc.Badger.GCInterval.String()
		}
		if sc.Badger.GCThreshold > 0 {
			bc.GCThreshold = sc.Badger.GCThreshold
		}
		if sc.Badger.CacheSizeMB > 0 {
			bc.CacheSize = sc.Badger.CacheSizeMB << 20
		}
		if key := cfg.Security.EncryptionKey; key != "" {
			c, err := adaptive.NewFromSecretWithType(key, cfg.Security.KeySalt, cipherPurpose, adaptive.CipherType(cfg.Security.Cipher))
			if err != nil {
				return nil, fmt.Errorf("init cipher: %w", err)
			}
			bc.Cipher = c
			log.Info("at-rest encryption enabled", "cipher", c.Type())
		}
		store, err := storage.NewBadgerStore(bc, log)
		if err != nil {
			return nil, err
		}
		store.RegisterMetrics(metrics.Registerer())
		return &backend{store: store, close: store.Close}, nil

	case config.BackendRedis:
		rc := redisstore.Config{
			Addr:         sc.Redis.Addr,
			Password:     sc.Redis.Password,
			DB:           sc.Redis.DB,
			Prefix:       sc.Redis.Prefix,
			Partitions:   sc.Partitions,
			DialTimeout:  sc.Redis.DialTimeout,
			ReadTimeout:  sc.Redis.ReadTimeout,
			WriteTimeout: sc.Redis.WriteTimeout,
		}
		store, err := redisstore.Open(ctx, rc, log)
		if err != nil {
			return nil, err
		}
		return &backend{store: store, ready: store.Ping, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// watchConfig reloads log.level whenever the config file changes. Other
// settings need a restart.
func watchConfig(path string, overrides []string, log *logger.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := config.Load(path, overrides...)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()

	return w.Stop, nil
}

// assignments collects repeated -set flags.
type assignments []string

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(v string) error {
	*a = append(*a, v)
	return nil
}
