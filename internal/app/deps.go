package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/domain/preset"
	"github.com/henjicc/henji-server/internal/infra/config"
	"github.com/henjicc/henji-server/internal/infra/events"
	"github.com/henjicc/henji-server/internal/infra/task"
	"github.com/henjicc/henji-server/internal/infra/tracing"
	"github.com/henjicc/henji-server/internal/module/credential"
	"github.com/henjicc/henji-server/internal/port/inbound"
	"github.com/henjicc/henji-server/internal/port/outbound"
	"github.com/henjicc/henji-server/internal/shared/logger"
	"github.com/henjicc/henji-server/internal/utils/metrics"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       goredis.UniversalClient
	HTTPClient  *http.Client
	RateLimiter outbound.RateLimiterPort
	Logger      *logger.Logger
	LogLevel    zap.AtomicLevel
	ZapLogger   *zap.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Tracing     tracing.ShutdownFunc

	// Storage
	Documents outbound.DocumentStorePort
	Assets    outbound.AssetStoragePort

	// Generation
	Catalog      *generation.Registry
	Credentials  *credential.Service
	Providers    outbound.MediaProviderResolverPort
	AssetManager *asset.Manager
	EventBus     *events.Bus
	Scheduler    *task.Scheduler
	Presets      *preset.Domain
	Tokens       outbound.TokenPort

	// HTTP Handlers
	TaskHandler       inbound.TaskHttpPort
	PresetHandler     inbound.PresetHttpPort
	ModelHandler      inbound.ModelHttpPort
	CredentialHandler inbound.CredentialHttpPort
	EventHandler      inbound.EventHttpPort
	FileHandler       inbound.FileHttpPort
}
