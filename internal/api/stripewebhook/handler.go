package stripewebhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/service/webhook"
)

// maxBodyBytes bounds a delivery; Stripe events are well below it.
const maxBodyBytes = 65536

type Processor interface {
	Process(ctx context.Context, payload []byte, signature string) (webhook.Result, error)
}

type Handler struct {
	processor Processor
	logger    *zap.Logger
}

func NewHandler(processor Processor, logger *zap.Logger) *Handler {
	return &Handler{processor: processor, logger: logger.Named("webhook_http")}
}

// StripeWebhook verifies and applies one delivery. Everything past signature
// verification is acknowledged, including handler failures, so Stripe only
// retries when the event could not be recorded.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	res, err := h.processor.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	h.logger.Debug("webhook acknowledged",
		zap.String("event_id", res.EventID),
		zap.String("outcome", string(res.Outcome)),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
