package http

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"revenda_bot/internal/usecases"
)

const (
	diagnosticServiceName = "revenda-bot"
	defaultTestText       = "Teste de conexão"
)

// Diagnostics answers the liveness ping and the token-gated test modes.
func (h *Handler) Diagnostics(c *gin.Context) {
	test := CleanParam(c.Query("test"))
	if test == "" {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"service":      diagnosticServiceName,
			"time":         h.now().UTC().Format(time.RFC3339),
			"provider_url": h.providerURL,
			"api_key":      MaskSecret(h.providerKey),
		})
		return
	}

	if err := h.middleware.VerifyDiagnosticToken(c.Query("token")); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid diagnostic token"})
		return
	}

	switch test {
	case "connection":
		h.testConnection(c)
	case "send":
		h.testSend(c)
	case "qr":
		h.testQR(c)
	case "usage":
		h.testUsage(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unknown test mode"})
	}
}

func (h *Handler) testConnection(c *gin.Context) {
	instance := CleanParam(c.Query("instance"))
	if instance == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "instance is required"})
		return
	}
	state, resp, err := h.provider.ConnectionState(c.Request.Context(), instance)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":      "error",
			"instance":    instance,
			"http_status": resp.StatusCode,
			"message":     err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"instance":    instance,
		"state":       state,
		"connected":   state == "open",
		"http_status": resp.StatusCode,
	})
}

func (h *Handler) testSend(c *gin.Context) {
	instance := CleanParam(c.Query("instance"))
	phone, err := usecases.NormalizePhone(CleanParam(c.Query("phone")))
	if instance == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "instance and a valid phone are required"})
		return
	}
	text := CleanParam(c.DefaultQuery("text", defaultTestText))

	resp, err := h.provider.Send(c.Request.Context(), usecases.EndpointText, instance, gin.H{"number": phone, "text": text})
	result := gin.H{
		"status":      "ok",
		"instance":    instance,
		"phone":       phone,
		"http_status": resp.StatusCode,
		"body":        usecases.Truncate(resp.Body, usecases.MaxProviderBody),
	}
	if err != nil {
		result["status"] = "error"
		result["message"] = err.Error()
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) testQR(c *gin.Context) {
	phone, err := usecases.NormalizePhone(CleanParam(c.Query("phone")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "a valid phone is required"})
		return
	}
	link := "https://wa.me/" + phone
	if text := CleanParam(c.Query("text")); text != "" {
		link += "?text=" + url.QueryEscape(text)
	}

	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to generate QR code"})
		return
	}
	c.Header("X-WA-Link", link)
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) testUsage(c *gin.Context) {
	tenantID := CleanParam(c.Query("tenant"))
	if tenantID == "" || h.usage == nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "tenant is required"})
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 90 {
		days = 7
	}
	history, err := h.usage.History(c.Request.Context(), tenantID, days, h.now())
	if err != nil {
		h.log.Error().Err(err).Str("tenant", tenantID).Msg("usage history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load usage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tenant": tenantID, "days": days, "usage": history})
}
