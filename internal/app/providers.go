package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Inbound adapters
	ginadapter "github.com/henjicc/henji-server/internal/adapter/inbound/gin"

	// Ports
	"github.com/henjicc/henji-server/internal/port/inbound"
	"github.com/henjicc/henji-server/internal/port/outbound"

	// Outbound adapters
	"github.com/henjicc/henji-server/internal/adapter/outbound/apitoken"
	"github.com/henjicc/henji-server/internal/adapter/outbound/assetfs"
	"github.com/henjicc/henji-server/internal/adapter/outbound/filestore"
	"github.com/henjicc/henji-server/internal/adapter/outbound/mediaprovider"
	"github.com/henjicc/henji-server/internal/adapter/outbound/postgres"
	redisadapter "github.com/henjicc/henji-server/internal/adapter/outbound/redis"
	s3adapter "github.com/henjicc/henji-server/internal/adapter/outbound/s3"

	// Domains
	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/preset"
	"github.com/henjicc/henji-server/internal/module/catalog"
	"github.com/henjicc/henji-server/internal/module/credential"

	// Infrastructure
	"github.com/henjicc/henji-server/internal/infra/config"
	"github.com/henjicc/henji-server/internal/infra/events"
	"github.com/henjicc/henji-server/internal/infra/httpclient"
	"github.com/henjicc/henji-server/internal/infra/mediameta"
	"github.com/henjicc/henji-server/internal/infra/poll"
	"github.com/henjicc/henji-server/internal/infra/task"
	"github.com/henjicc/henji-server/internal/infra/tracing"
	"github.com/henjicc/henji-server/internal/shared/cache"
	"github.com/henjicc/henji-server/internal/shared/database"
	"github.com/henjicc/henji-server/internal/shared/logger"

	// Utils
	"github.com/henjicc/henji-server/internal/utils/metrics"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverLocal    = "local"
	DriverS3       = "s3"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideLogLevel,
	ProvideZapLogger,
	ProvidePrometheusRegistry,
	ProvideMetrics,
	ProvideTracing,
	ProvideHTTPClient,
	ProvideRedisClient,
	ProvideDatabase,
	ProvideRateLimiter,
)

// ProvideLogger creates the request logger.
func ProvideLogger(cfg *config.Config) *logger.Logger {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideLogLevel creates the level shared by every zap logger. Config reloads change
// it in place.
func ProvideLogLevel(cfg *config.Config) zap.AtomicLevel {
	return logger.NewAtomicLevel(cfg.Log.Level)
}

// ProvideZapLogger creates a zap logger instance.
func ProvideZapLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}, level)
	if err != nil {
		return nil, nil, err
	}
	return zapLog, func() { _ = zapLog.Sync() }, nil
}

// ProvidePrometheusRegistry creates the registry served on /metrics.
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New("henji", reg)
}

// ProvideTracing installs the global tracer provider.
func ProvideTracing(cfg *config.Config, zapLog *zap.Logger) (tracing.ShutdownFunc, func(), error) {
	shutdown, err := tracing.Init(context.Background(), &cfg.Tracing, zapLog)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			zapLog.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	return shutdown, cleanup, nil
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideRedisClient creates a Redis client. Redis is optional unless it backs the
// document store.
func ProvideRedisClient(cfg *config.Config, zapLog *zap.Logger) (goredis.UniversalClient, func(), error) {
	required := cfg.Store.Driver == DriverRedis
	if cfg.Redis.Address == "" {
		if required {
			return nil, nil, errors.New("store.driver is redis but redis.address is empty")
		}
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(context.Background(), &cfg.Redis)
	if err != nil {
		if required {
			return nil, nil, err
		}
		zapLog.Warn("Redis connection failed, continuing without rate limiting", zap.Error(err))
		return nil, func() {}, nil
	}
	return client, func() { _ = cache.Close(client) }, nil
}

// ProvideDatabase opens postgres when it backs the document store.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	if cfg.Store.Driver != DriverPostgres {
		return nil, func() {}, nil
	}
	db, err := database.New(context.Background(), &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	return db, func() { _ = database.Close(db) }, nil
}

// ProvideRateLimiter creates a rate limiter.
func ProvideRateLimiter(redis goredis.UniversalClient) outbound.RateLimiterPort {
	if redis == nil {
		return nil
	}
	return redisadapter.NewRateLimiter(redis)
}

// ===== Storage Providers =====

// StorageSet provides the document and asset stores.
var StorageSet = wire.NewSet(
	ProvideDocumentStore,
	ProvideAssetStore,
)

// ProvideDocumentStore selects the document store by store.driver.
func ProvideDocumentStore(cfg *config.Config, redis goredis.UniversalClient, db *gorm.DB) (outbound.DocumentStorePort, error) {
	switch cfg.Store.Driver {
	case DriverFile, "":
		return filestore.NewOS(cfg.Store.Dir)
	case DriverRedis:
		return redisadapter.NewDocumentStoreAdapter(redis, cfg.Store.KeyPrefix), nil
	case DriverPostgres:
		store := postgres.NewDocumentDBAdapter(db)
		if err := store.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("migrate documents: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// ProvideAssetStore selects the asset store by assets.driver.
func ProvideAssetStore(cfg *config.Config) (outbound.AssetStoragePort, error) {
	switch cfg.Assets.Driver {
	case DriverLocal, "":
		return assetfs.NewOS(cfg.Assets.Dir, cfg.Assets.PublicPath)
	case DriverS3:
		s3cfg := &s3adapter.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			Prefix:          cfg.Storage.Prefix,
			URLExpiry:       cfg.Assets.URLExpiry,
		}
		client, err := s3adapter.NewClient(context.Background(), s3cfg)
		if err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
		return s3adapter.NewAssetStorageAdapter(client, s3cfg), nil
	default:
		return nil, fmt.Errorf("unknown assets driver %q", cfg.Assets.Driver)
	}
}

// ===== Generation Providers =====

// GenerationSet provides the catalog, provider adapters, scheduler and presets.
var GenerationSet = wire.NewSet(
	catalog.NewRegistry,
	generation.NewBuilder,
	ProvideCredentialService,
	wire.Bind(new(mediaprovider.KeySource), new(*credential.Service)),
	ProvideProviderRegistry,
	wire.Bind(new(outbound.MediaProviderResolverPort), new(*mediaprovider.Registry)),
	mediaprovider.NewDownloader,
	mediameta.New,
	ProvideEventBus,
	ProvideAssetManager,
	ProvideScheduler,
	ProvidePresetDomain,
	ProvideTokenManager,
)

// ProvideCredentialService creates the credential service. Configured keys act as the
// fallback for keys stored through the API.
func ProvideCredentialService(cfg *config.Config, docs outbound.DocumentStorePort, zapLog *zap.Logger) (*credential.Service, error) {
	return credential.NewService(docs, credential.Config{
		MasterKey: cfg.Auth.MasterKey,
		Providers: catalog.Providers,
		Fallback:  cfg.Providers.APIKeys(),
	}, zapLog)
}

func providerConfig(c config.ProviderConfig) mediaprovider.Config {
	return mediaprovider.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, Timeout: c.Timeout}
}

// ProvideProviderRegistry registers the provider adapters behind circuit breakers.
func ProvideProviderRegistry(
	cfg *config.Config,
	client *http.Client,
	keys mediaprovider.KeySource,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) *mediaprovider.Registry {
	return mediaprovider.NewDefaultRegistry(client, &mediaprovider.ProvidersConfig{
		Fal:          providerConfig(cfg.Providers.Fal),
		PPIO:         providerConfig(cfg.Providers.PPIO),
		KIE:          providerConfig(cfg.Providers.KIE),
		ModelScope:   providerConfig(cfg.Providers.ModelScope),
		KIEUploadURL: cfg.Providers.KIEUploadURL,
	}, keys, &mediaprovider.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
	}, m, zapLog)
}

// ProvideEventBus creates the in-process event bus.
func ProvideEventBus(zapLog *zap.Logger) *events.Bus {
	return events.NewBus(zapLog)
}

// ProvideAssetManager creates the asset lifecycle manager.
func ProvideAssetManager(store outbound.AssetStoragePort, m *metrics.Metrics, zapLog *zap.Logger) *asset.Manager {
	mgr := asset.NewManager(store, zapLog)
	mgr.SetMetrics(m)
	return mgr
}

// ProvideScheduler creates the task scheduler. It is started by App.Start.
func ProvideScheduler(
	cfg *config.Config,
	builder *generation.Builder,
	providers outbound.MediaProviderResolverPort,
	assets *asset.Manager,
	docs outbound.DocumentStorePort,
	fetcher *mediaprovider.Downloader,
	inspector *mediameta.Inspector,
	bus *events.Bus,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) *task.Scheduler {
	return task.NewScheduler(task.Deps{
		Builder:   builder,
		Providers: providers,
		Assets:    assets,
		Repo:      task.NewRepository(docs),
		Fetcher:   fetcher,
		Inspector: inspector,
		Bus:       bus,
		Metrics:   m,
		Logger:    zapLog,
	}, &task.Config{
		MaxHistory: cfg.Scheduler.MaxHistory,
		Poll: poll.Config{
			Interval:     cfg.Scheduler.PollInterval,
			MaxAttempts:  cfg.Scheduler.PollMaxAttempts,
			CheckTimeout: cfg.Scheduler.PollCheckTimeout,
		},
	})
}

// ProvidePresetDomain creates the preset domain.
func ProvidePresetDomain(docs outbound.DocumentStorePort, assets *asset.Manager, zapLog *zap.Logger) *preset.Domain {
	return preset.NewDomain(docs, assets, zapLog)
}

// ProvideTokenManager creates the API token manager.
func ProvideTokenManager(cfg *config.Config) outbound.TokenPort {
	return apitoken.NewJWTManager(apitoken.Config{
		Secret: cfg.Auth.JWTSecret,
		Expiry: cfg.Auth.TokenExpiry,
	})
}

// ===== HTTP Handler Providers =====

// HandlerSet provides the HTTP adapters.
var HandlerSet = wire.NewSet(
	ProvideTaskHandler,
	ProvidePresetHandler,
	ProvideModelHandler,
	ProvideCredentialHandler,
	ProvideEventHandler,
	ProvideFileHandler,
)

// ProvideTaskHandler creates the task HTTP adapter.
func ProvideTaskHandler(cfg *config.Config, scheduler *task.Scheduler, store outbound.AssetStoragePort, inspector *mediameta.Inspector) inbound.TaskHttpPort {
	return ginadapter.NewTaskAdapter(scheduler, store, inspector, cfg.Server.MaxUploadBytes)
}

// ProvidePresetHandler creates the preset HTTP adapter.
func ProvidePresetHandler(cfg *config.Config, presets *preset.Domain, store outbound.AssetStoragePort, inspector *mediameta.Inspector) inbound.PresetHttpPort {
	return ginadapter.NewPresetAdapter(presets, store, inspector, cfg.Server.MaxUploadBytes)
}

// ProvideModelHandler creates the catalog HTTP adapter.
func ProvideModelHandler(registry *generation.Registry, providers outbound.MediaProviderResolverPort) inbound.ModelHttpPort {
	return ginadapter.NewModelAdapter(registry, providers)
}

// ProvideCredentialHandler creates the credential HTTP adapter.
func ProvideCredentialHandler(credentials *credential.Service) inbound.CredentialHttpPort {
	return ginadapter.NewCredentialAdapter(credentials)
}

// ProvideEventHandler creates the SSE adapter.
func ProvideEventHandler(bus *events.Bus) inbound.EventHttpPort {
	return ginadapter.NewEventAdapter(bus, 0)
}

// ProvideFileHandler creates the stored file adapter.
func ProvideFileHandler(store outbound.AssetStoragePort) inbound.FileHttpPort {
	return ginadapter.NewFileAdapter(store)
}

// ===== All Providers =====

// AppSet combines all provider sets.
var AppSet = wire.NewSet(
	InfraSet,
	StorageSet,
	GenerationSet,
	HandlerSet,
)
