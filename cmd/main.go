package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"revenda_bot/internal/config"
	"revenda_bot/internal/infrastructure"
	"revenda_bot/internal/interfaces"
	"revenda_bot/internal/interfaces/http"
	"revenda_bot/internal/repository"
	"revenda_bot/internal/usecases"
)

func main() {
	cfg, fromFile := config.Load()
	log := infrastructure.NewLogger(cfg.LogLevel, cfg.LogJSON)
	if !fromFile {
		log.Info().Msg("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	// Initialize Repositories
	tenantRepo := repository.NewTenantRepository(pgClient.Pool)
	userRepo := repository.NewUserRepository(pgClient.Pool)
	configRepo := repository.NewConfigRepository(pgClient.Pool)
	contactRepo := repository.NewContactRepository(pgClient.Pool)
	ruleRepo := repository.NewRuleRepository(pgClient.Pool)
	flowRepo := repository.NewFlowRepository(pgClient.Pool)
	adminRepo := repository.NewAdminRepository(pgClient.Pool)
	usageRepo := repository.NewUsageRepository(pgClient.Pool)
	interactionRepo := repository.NewInteractionLogRepository(pgClient.Pool)

	var sendLog interfaces.SendLogStore = repository.NewSendLogRepository(pgClient.Pool)
	spool, err := infrastructure.OpenSendLogSpool(cfg.SpoolPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.SpoolPath).Msg("send log spool unavailable, writing to postgres only")
	} else {
		defer spool.Close()
		if n, err := spool.Replay(ctx, sendLog); err != nil {
			log.Warn().Err(err).Int("replayed", n).Msg("send log spool replay incomplete")
		} else if n > 0 {
			log.Info().Int("replayed", n).Msg("send log spool replayed")
		}
		sendLog = infrastructure.NewSpooledSendLog(sendLog, spool, log)
	}

	// Outbound integrations
	provider := infrastructure.NewProviderClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, log)
	alerter := infrastructure.NewAlerter(cfg.TelegramBotToken, cfg.TelegramAlertChatID, log)

	var events interfaces.EventPublisher
	if cfg.AMQPURL != "" {
		events, err = infrastructure.NewEventPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn().Err(err).Msg("event broker unavailable, events will only be logged")
		}
	}
	if events == nil {
		events = infrastructure.NewFallbackPublisher(log)
	}
	defer events.Close()

	deduper := infrastructure.NewMessageDeduper(cfg.DedupeWindow)
	go deduper.Run(ctx)
	limiter := infrastructure.NewMessageRateLimiter(cfg.OutboundRate, cfg.OutboundBurst)
	go limiter.Run(ctx)

	// Initialize Usecases & Services
	delivery := usecases.NewDelivery(provider, tenantRepo, sendLog, contactRepo, alerter, events, usecases.DeliveryConfig{
		TypingEnabled: cfg.TypingEnabled,
		TypingMin:     cfg.TypingMin,
		TypingMax:     cfg.TypingMax,
	}, log)

	conversations := usecases.NewConversationService(usecases.ConversationDeps{
		Resolver:       usecases.NewIdentityResolver(tenantRepo, userRepo, configRepo, cfg.SellerInstancePrefix),
		Admin:          usecases.NewAdminMenu(adminRepo, configRepo, time.Now),
		Flows:          usecases.NewFlowEngine(flowRepo, flowRepo, time.Now),
		Delivery:       delivery,
		Tenants:        tenantRepo,
		Contacts:       contactRepo,
		Rules:          ruleRepo,
		Keywords:       ruleRepo,
		Interactions:   interactionRepo,
		Deduper:        deduper,
		Limiter:        limiter,
		Usage:          usageRepo,
		Alerter:        alerter,
		Events:         events,
		Logger:         log,
		Clock:          time.Now,
		ProcessTimeout: cfg.ProcessTimeout,
	})

	// HTTP server
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	middleware := http.NewMiddleware(cfg.DiagnosticSecret)
	handler := http.NewHandler(conversations, provider, usageRepo, middleware, provider.BaseURL(), cfg.ProviderAPIKey, log)
	http.SetupRoutes(r, handler, http.RouteOptions{
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		RateLimit:    rate.Limit(cfg.WebhookRate),
		RateBurst:    cfg.WebhookBurst,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}
