package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Receive accepts a provider webhook. Domain outcomes always answer 200 so
// the provider does not redeliver.
func (h *Handler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unreadable body"})
		return
	}

	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil || root == nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid JSON"})
		return
	}

	msg, reason := ParseWebhook(root, c.Param("event"))
	if reason != "" {
		h.log.Debug().Str("instance", msg.Instance).Str("reason", reason).Msg("webhook ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": reason})
		return
	}

	msg.TraceID = uuid.NewString()
	msg.Received = h.now()

	// Processing outlives a provider that hangs up early; the service bounds it.
	out := h.conversations.Handle(context.WithoutCancel(c.Request.Context()), msg)

	resp := gin.H{"status": out.Status, "trace_id": msg.TraceID}
	if out.Reason != "" {
		resp["reason"] = out.Reason
	}
	if out.Instance != "" {
		resp["instance"] = out.Instance
	}
	if out.Source != "" {
		resp["source"] = out.Source
	}
	if out.Endpoint != "" {
		resp["endpoint"] = out.Endpoint
	}
	c.JSON(http.StatusOK, resp)
}
