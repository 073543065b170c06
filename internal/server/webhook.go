package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Processor payloads are a few kilobytes; anything larger is not a webhook.
const maxWebhookBody = 1 << 20

const outcomeContextKey = "webhook_outcome"

// HandlePaymentWebhook reads the exact raw body since the signature covers
// its bytes. Any error returned by ingestion is answered with a 4xx so the
// processor redelivers.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, newValidationError("body", "too_large", "request body too large"))
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	outcome, err := s.payments.IngestWebhook(c.Request.Context(), payload, c.Request.Header)
	c.Set(outcomeContextKey, string(outcome))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": outcome})
}

func (s *Server) WebhookProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "Webhook endpoint is accessible",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}
