package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/internal/events"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/internal/services/callreport"
	"github.com/sylonai/sylon-voice-service/internal/services/provisioning"
	"github.com/sylonai/sylon-voice-service/pkg/gcs"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/pubsub"
	"github.com/sylonai/sylon-voice-service/pkg/redis"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
	"go.uber.org/zap"
)

// HandlerManager manages all handlers and the services behind them
type HandlerManager struct {
	config      *config.ServiceConfig
	repoManager repository.RepositoryManager
	provisioner Provisioner
	callReports CallReportProcessor
	rateLimiter *RateLimiter

	// Optional infrastructure, nil when not configured.
	redisSvc  *redis.RedisService
	pubsubSvc *pubsub.PubSubService
	gcsClient *gcs.GCSClient
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.ServiceConfig) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	hm := &HandlerManager{
		config:      cfg,
		repoManager: repoManager,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.TrustedProxyHops),
	}

	// Redis backs the cross-instance location lock and the assistant cache. Without it
	// locks are process-local.
	var locker provisioning.Locker
	if cfg.Redis.Host != "" {
		redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis service, using in-process locks", zap.Error(err))
		} else {
			hm.redisSvc = redisSvc
			locker = provisioning.NewRedisLocker(redisSvc, cfg.Provisioning.LockTTL)
			logger.Base().Info("redis location lock enabled", zap.String("host", cfg.Redis.Host))
		}
	} else {
		logger.Base().Info("redis not configured, using in-process locks")
	}

	if cfg.PubSub.ProjectID != "" {
		pubsubSvc, err := pubsub.NewPubSubService(context.Background(), &pubsub.PubSubConfig{
			ProjectID: cfg.PubSub.ProjectID,
			TopicName: cfg.PubSub.TopicName,
			PubID:     cfg.PubSub.PubID,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize pubsub, events disabled", zap.Error(err))
		} else {
			hm.pubsubSvc = pubsubSvc
			logger.Base().Info("pubsub events enabled", zap.String("topic", cfg.PubSub.TopicName))
		}
	}

	if cfg.Storage.TranscriptBucket != "" {
		gcsClient, err := gcs.NewGCSClient(context.Background(), cfg.Storage.TranscriptBucket)
		if err != nil {
			logger.Base().Warn("failed to initialize gcs client, transcript archive disabled", zap.Error(err))
		} else {
			hm.gcsClient = gcsClient
			logger.Base().Info("transcript archive enabled", zap.String("bucket", cfg.Storage.TranscriptBucket))
		}
	}

	deps := provisioning.Dependencies{
		Repos:     repoManager,
		Telephony: twilio.NewClient(cfg.Telephony),
		VoiceAI:   vapi.NewClient(cfg.VoiceAI),
		Locker:    locker,
	}
	opts := callreport.Options{}
	switch {
	case hm.pubsubSvc != nil:
		deps.Events = hm.pubsubSvc
		opts.Events = hm.pubsubSvc
	case hm.redisSvc != nil:
		bus := events.NewRedisBus(hm.redisSvc)
		deps.Events = bus
		opts.Events = bus
		logger.Base().Info("publishing events on redis channel", zap.String("channel", events.Channel))
	}
	if hm.redisSvc != nil {
		opts.Cache = hm.redisSvc
	}
	if hm.gcsClient != nil {
		opts.Archiver = hm.gcsClient
	}

	hm.provisioner = provisioning.NewService(deps, cfg)
	hm.callReports = callreport.NewService(repoManager, opts)

	return hm, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(CORSMiddleware)
	router.Use(GlobalLoggingMiddleware)

	hm.SetupHealthRoutes(router)
	hm.SetupAPIRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupHealthRoutes sets up the unauthenticated health check
func (hm *HandlerManager) SetupHealthRoutes(router *mux.Router) {
	checks := map[string]Pinger{"database": hm.repoManager}
	if hm.redisSvc != nil {
		checks["redis"] = hm.redisSvc
	}
	healthHandler := NewHealthHandler(checks)
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
}

// SetupAPIRoutes sets up provisioning, read and webhook routes under /api
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(ValidationMiddleware)

	// The provider authenticates with its shared secret, not a dashboard token.
	webhookHandler := NewVapiWebhookHandler(hm.callReports, hm.config.VoiceAI.WebhookSecret)
	webhookHandler.SetupWebhookRoutes(apiRouter)

	authRouter := apiRouter.NewRoute().Subrouter()
	authRouter.Use(JWTAuthMiddleware(hm.config.SecretKey))
	if hm.config.SecretKey == "" {
		logger.Base().Warn("SECRET_KEY not set, api routes are unauthenticated (development mode)")
	}

	locationHandler := NewLocationHandler(hm.repoManager)
	locationHandler.SetupLocationRoutes(authRouter)

	provisioningRouter := authRouter.NewRoute().Subrouter()
	provisioningRouter.Use(RateLimitMiddleware(hm.rateLimiter))
	provisioningHandler := NewProvisioningHandler(hm.provisioner)
	provisioningHandler.SetupProvisioningRoutes(provisioningRouter)

	router.PathPrefix("/api/").HandlerFunc(handleCORS).Methods("OPTIONS")

	logger.Base().Info("api routes registered")
}

// Close releases the database and optional clients.
func (hm *HandlerManager) Close() {
	if hm.pubsubSvc != nil {
		if err := hm.pubsubSvc.Close(); err != nil {
			logger.Base().Warn("failed to close pubsub client", zap.Error(err))
		}
	}
	if hm.gcsClient != nil {
		if err := hm.gcsClient.Close(); err != nil {
			logger.Base().Warn("failed to close gcs client", zap.Error(err))
		}
	}
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("failed to close redis client", zap.Error(err))
		}
	}
	if hm.repoManager != nil {
		if err := hm.repoManager.Close(); err != nil {
			logger.Base().Warn("failed to close database", zap.Error(err))
		}
	}
}

// GetRepoManager returns the repository manager
func (hm *HandlerManager) GetRepoManager() repository.RepositoryManager {
	return hm.repoManager
}

// handleCORS handles CORS preflight requests for API routes
func handleCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}
