package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/internal/handler"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// Server is the Sylon provisioning server
type Server struct {
	config         *config.ServiceConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
	httpServer     *http.Server
}

// NewServer creates a new server
func NewServer(cfg *config.ServiceConfig) *Server {
	if _, err := logger.Init(cfg.LogEnv); err != nil {
		log.Printf("failed to initialize zap logger, falling back to defaults: %v", err)
	}

	router := mux.NewRouter()

	// The handler manager creates the repositories, provider clients and services.
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		logger.Base().Error("Failed to initialize handler manager", zap.Error(err))
		return nil
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}
}

// Start serves until ctx is canceled, then drains in-flight requests. Activation runs are
// long chains of provider calls, so the write timeout is generous.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Base().Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.handlerManager.Close()
	return err
}

// LoadConfigFromEnv loads the service configuration from environment variables
func LoadConfigFromEnv() *config.ServiceConfig {
	cfg := config.DefaultServiceConfig()

	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.LogEnv = getEnvOrDefault("LOG_ENV", cfg.LogEnv)
	cfg.InstanceID = getDynamicInstanceID()
	cfg.SecretKey = getEnvOrDefault("SECRET_KEY", "")

	// Telephony: env credentials are the named default profile.
	cfg.Telephony.Default = config.TelephonyProfile{
		Name:       config.DefaultProfileName,
		AccountSID: getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		AuthToken:  getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
	}
	cfg.Telephony.SubAccountsEnabled = getEnvAsBoolOrDefault("TWILIO_SUBACCOUNTS_ENABLED", false)
	cfg.Telephony.CountryCode = getEnvOrDefault("TWILIO_COUNTRY_CODE", cfg.Telephony.CountryCode)

	// Voice-AI provider
	cfg.VoiceAI.APIKey = getEnvOrDefault("VAPI_API_KEY", "")
	cfg.VoiceAI.BaseURL = getEnvOrDefault("VAPI_BASE_URL", cfg.VoiceAI.BaseURL)
	cfg.VoiceAI.WebhookSecret = getEnvOrDefault("VAPI_WEBHOOK_SECRET", "")
	cfg.VoiceAI.Timeout = time.Duration(getEnvAsIntOrDefault("VAPI_TIMEOUT_SECONDS", int(cfg.VoiceAI.Timeout/time.Second))) * time.Second
	cfg.VoiceAI.CallReportURL = getEnvOrDefault("CALL_REPORT_WEBHOOK_URL", cfg.VoiceAI.CallReportURL)
	cfg.VoiceAI.ModelProvider = getEnvOrDefault("VAPI_MODEL_PROVIDER", cfg.VoiceAI.ModelProvider)
	cfg.VoiceAI.Model = getEnvOrDefault("VAPI_MODEL", cfg.VoiceAI.Model)
	cfg.VoiceAI.VoiceProvider = getEnvOrDefault("VAPI_VOICE_PROVIDER", cfg.VoiceAI.VoiceProvider)
	cfg.VoiceAI.VoiceID = getEnvOrDefault("VAPI_VOICE_ID", cfg.VoiceAI.VoiceID)
	cfg.VoiceAI.TranscriberProvider = getEnvOrDefault("VAPI_TRANSCRIBER_PROVIDER", cfg.VoiceAI.TranscriberProvider)
	cfg.VoiceAI.TranscriberModel = getEnvOrDefault("VAPI_TRANSCRIBER_MODEL", cfg.VoiceAI.TranscriberModel)

	// Provisioning
	cfg.Provisioning.DefaultAreaCode = getEnvOrDefault("DEFAULT_AREA_CODE", cfg.Provisioning.DefaultAreaCode)
	cfg.Provisioning.DefaultBusinessType = getEnvOrDefault("DEFAULT_BUSINESS_TYPE", cfg.Provisioning.DefaultBusinessType)
	cfg.Provisioning.CompensateOnHardStop = getEnvAsBoolOrDefault("COMPENSATE_ON_HARD_STOP", cfg.Provisioning.CompensateOnHardStop)
	cfg.Provisioning.LockTTL = time.Duration(getEnvAsIntOrDefault("LOCATION_LOCK_TTL_SECONDS", int(cfg.Provisioning.LockTTL/time.Second))) * time.Second

	// Optional infrastructure
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", "")
	cfg.Redis.Port = getEnvOrDefault("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsIntOrDefault("REDIS_DB", 0)

	cfg.PubSub.ProjectID = getEnvOrDefault("PUBSUB_PROJECT_ID", "")
	cfg.PubSub.TopicName = getEnvOrDefault("PUBSUB_TOPIC", cfg.PubSub.TopicName)
	cfg.PubSub.PubID = getEnvOrDefault("PUBSUB_PUB_ID", cfg.PubSub.PubID)

	cfg.Storage.TranscriptBucket = getEnvOrDefault("TRANSCRIPT_BUCKET", "")

	cfg.RateLimit.RequestsPerSecond = getEnvAsFloatOrDefault("RATE_LIMIT_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = getEnvAsIntOrDefault("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TrustedProxyHops = getEnvAsIntOrDefault("TRUSTED_PROXY_HOPS", 0)

	return &cfg
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDynamicInstanceID uses the hostname (pod name in Kubernetes), falling back to a
// timestamp-based ID.
func getDynamicInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("sylon-voice-service-%d", time.Now().UnixNano())
}

func main() {
	// .env is for local development and never overrides variables set by the deployment.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := LoadConfigFromEnv()

	server := NewServer(cfg)
	if server == nil {
		log.Fatal("Failed to create server")
	}
	defer logger.Sync()

	logger.Base().Info("Server initialized",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID),
		zap.Bool("subaccounts_enabled", cfg.Telephony.SubAccountsEnabled),
		zap.Bool("compensate_on_hard_stop", cfg.Provisioning.CompensateOnHardStop))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Base().Fatal("Server failed", zap.Error(err))
	}
}
