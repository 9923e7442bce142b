// Package main запускает сервис анализа радиосигналов.
// Сервис реализует:
// - HTTP API сессий захвата: прием импульсов и кадров, анализ, отчеты
// - прием захватов через MQTT и публикацию отчетов
// - базу отпечатков устройств в SQLite
// - кэширование отчетов в Redis
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/cache"
	"github.com/tworjaga/flipper-rf-lab/internal/clustering"
	"github.com/tworjaga/flipper-rf-lab/internal/config"
	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
	"github.com/tworjaga/flipper-rf-lab/internal/handlers"
	"github.com/tworjaga/flipper-rf-lab/internal/ingest"
	"github.com/tworjaga/flipper-rf-lab/internal/logger"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/storage"
	"github.com/tworjaga/flipper-rf-lab/internal/threat"
)

const (
	redisAttempts   = 5
	shutdownTimeout = 30 * time.Second
	metricsInterval = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "rflab")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting rf analysis service",
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// База устройств и ее хранилище
	devices := fingerprint.NewDatabase(cfg.Analysis.DeviceCapacity, log)
	var store *storage.SQLiteStore
	if cfg.SQLite.Enabled {
		store, err = storage.Open(ctx, cfg.SQLite.Path, log)
		if err != nil {
			log.Fatal("failed to open device store", zap.String("path", cfg.SQLite.Path), zap.Error(err))
		}
		devices.SetPersister(store)
		if err := devices.Load(ctx); err != nil {
			log.Fatal("failed to load devices", zap.Error(err))
		}
	}
	metrics.KnownDevices.Set(float64(devices.Len()))

	clusterer := clustering.NewEngine(clustering.Config{MaxIterations: cfg.Analysis.KMeansIterations}, log)

	registry := analytics.NewRegistry(cfg.Analysis.MaxSessions, analytics.SessionConfig{
		PulseCapacity:     cfg.Analysis.PulseCapacity,
		FrameCapacity:     cfg.Analysis.FrameCapacity,
		ClusterK:          cfg.Analysis.ClusterK,
		ReclusterInterval: cfg.Analysis.ReclusterInterval,
		ReclusterWorkers:  cfg.Analysis.ReclusterWorkers,
	}, clusterer, log)

	analyzerCfg := analytics.DefaultConfig()
	analyzerCfg.QueueSize = cfg.Analysis.QueueSize
	analyzerCfg.ClusterK = cfg.Analysis.ClusterK
	analyzerCfg.Fingerprint.SampleCount = cfg.Analysis.FingerprintSamples
	analyzer := analytics.NewAnalyzer(analyzerCfg, devices, clusterer, log)
	analyzer.Start(cfg.Analysis.WorkerCount)

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache = connectRedis(ctx, cfg.Redis, log)
	}

	var (
		mqttClient *ingest.Client
		ingestor   *ingest.Ingestor
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = ingest.NewClient(cfg.MQTT, log)
		if err != nil {
			log.Warn("running without mqtt ingest", zap.Error(err))
		} else {
			ingestor = ingest.NewIngestor(registry, analyzer, mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
			if err := ingestor.Subscribe(mqttClient); err != nil {
				log.Error("failed to subscribe to capture topics", zap.Error(err))
			}
		}
	}

	deps := handlers.Deps{
		Registry: registry,
		Analyzer: analyzer,
		Devices:  devices,
		Cache:    redisCache,
		Store:    store,
		Logger:   log,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	handler := handlers.NewHandler(deps)

	router := mux.NewRouter()
	handler.Routes(router)
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	router.Use(loggingMiddleware(log))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go updateMetricsLoop(ctx, registry, devices)

	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		processAnalysisResults(ctx, analyzer, redisCache, ingestor, log)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	// Stop закрывает канал результатов, цикл обработки завершится сам
	analyzer.Stop()
	<-resultsDone
	registry.Close()
	cancel()

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if err := devices.Sync(shutdownCtx); err != nil {
		log.Error("failed to sync devices", zap.Error(err))
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Error("failed to close device store", zap.Error(err))
		}
	}
	if redisCache != nil {
		redisCache.Close()
	}

	log.Info("server stopped")
}

// connectRedis подключается к Redis с повторами; nil означает работу без кэша
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *cache.RedisCache {
	var err error
	for i := 0; i < redisAttempts; i++ {
		var c *cache.RedisCache
		c, err = cache.NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB)
		if err == nil {
			log.Info("connected to redis", zap.String("addr", cfg.Addr))
			return c
		}
		log.Warn("redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < redisAttempts-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	log.Warn("running without cache", zap.Error(err))
	return nil
}

// loggingMiddleware журналирует HTTP запросы
func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context, registry *analytics.Registry, devices *fingerprint.Database) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ActiveSessions.Set(float64(registry.Len()))
			metrics.KnownDevices.Set(float64(devices.Len()))
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// processAnalysisResults сохраняет отчеты асинхронного анализа в кэш
// и публикует их в брокер
func processAnalysisResults(ctx context.Context, analyzer *analytics.Analyzer, redisCache *cache.RedisCache, ingestor *ingest.Ingestor, log *zap.Logger) {
	for rep := range analyzer.Results() {
		if redisCache != nil {
			if err := redisCache.SaveReport(ctx, rep); err != nil {
				log.Warn("failed to cache report", zap.String("session_id", rep.SessionID), zap.Error(err))
			}
		}
		if ingestor != nil {
			if err := ingestor.PublishReport(rep); err != nil {
				log.Warn("failed to publish report", zap.String("session_id", rep.SessionID), zap.Error(err))
			}
		}
		if rep.Threat != nil && rep.Threat.Level >= threat.RiskHigh {
			log.Warn("high risk transmitter",
				zap.String("session_id", rep.SessionID),
				zap.Stringer("risk", rep.Threat.Level),
			)
		}
	}
}
