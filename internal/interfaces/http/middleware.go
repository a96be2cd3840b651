package http

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DiagnosticScope is the scope claim required on diagnostic tokens.
const DiagnosticScope = "diagnostic"

var errDiagnosticsDisabled = errors.New("diagnostics disabled")

type Middleware struct {
	diagnosticSecret []byte
	rateLimiters     map[string]*rate.Limiter
	mu               sync.Mutex
}

func NewMiddleware(diagnosticSecret string) *Middleware {
	return &Middleware{
		diagnosticSecret: []byte(diagnosticSecret),
		rateLimiters:     make(map[string]*rate.Limiter),
	}
}

// VerifyDiagnosticToken checks an HS256 token carrying scope=diagnostic.
func (m *Middleware) VerifyDiagnosticToken(tokenString string) error {
	if len(m.diagnosticSecret) == 0 {
		return errDiagnosticsDisabled
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.diagnosticSecret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != DiagnosticScope {
		return errors.New("token scope is not diagnostic")
	}
	return nil
}

// IssueDiagnosticToken signs a short-lived diagnostic token.
func (m *Middleware) IssueDiagnosticToken(ttl time.Duration) (string, error) {
	if len(m.diagnosticSecret) == 0 {
		return "", errDiagnosticsDisabled
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": DiagnosticScope,
		"exp":   time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(m.diagnosticSecret)
}

// RateLimitPerClient limits requests per client IP
func (m *Middleware) RateLimitPerClient(r rate.Limit, b int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		m.mu.Lock()
		limiter, exists := m.rateLimiters[key]
		if !exists {
			limiter = rate.NewLimiter(r, b)
			m.rateLimiters[key] = limiter
		}
		m.mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"status": "error", "message": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// CORS allows the configured origins; "*" allows all
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "apikey", "Authorization")
	return cors.New(cfg)
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent MIME type sniffing
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		// Prevent clickjacking
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// Recovery turns panics into a generic JSON error.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "internal error"})
	})
}
