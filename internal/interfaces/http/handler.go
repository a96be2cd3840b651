package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
	"revenda_bot/internal/repository"
	"revenda_bot/internal/usecases"
)

// UsageReader reads per-tenant daily counters for diagnostics.
type UsageReader interface {
	History(ctx context.Context, tenantID string, days int, now time.Time) ([]repository.DailyUsage, error)
}

// Conversations processes one canonical inbound message.
type Conversations interface {
	Handle(ctx context.Context, msg entities.InboundMessage) usecases.Outcome
}

type Handler struct {
	conversations Conversations
	provider      interfaces.Provider
	usage         UsageReader
	middleware    *Middleware
	providerURL   string
	providerKey   string
	log           zerolog.Logger
	now           func() time.Time
}

func NewHandler(conversations Conversations, provider interfaces.Provider, usage UsageReader, middleware *Middleware, providerURL, providerKey string, log zerolog.Logger) *Handler {
	return &Handler{
		conversations: conversations,
		provider:      provider,
		usage:         usage,
		middleware:    middleware,
		providerURL:   providerURL,
		providerKey:   providerKey,
		log:           log.With().Str("component", "webhook").Logger(),
		now:           time.Now,
	}
}

type RouteOptions struct {
	CORSOrigins  []string
	MaxBodyBytes int64
	RateLimit    rate.Limit
	RateBurst    int
}

func SetupRoutes(r *gin.Engine, h *Handler, opts RouteOptions) {
	// Apply Security Middleware
	r.Use(Recovery(h.log))
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(opts.MaxBodyBytes))
	r.Use(CORS(opts.CORSOrigins))

	webhook := r.Group("/webhook")
	webhook.Use(h.middleware.RateLimitPerClient(opts.RateLimit, opts.RateBurst))
	{
		webhook.POST("", h.Receive)
		webhook.POST("/*event", h.Receive)
		webhook.GET("", h.Diagnostics)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
