package billing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/domain/billing"
)

const (
	defaultPaymentsLimit = 50
	maxPaymentsLimit     = 200
)

func (h *Handler) GetPaymentHistory(c *gin.Context) {
	limit := defaultPaymentsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apierror.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPaymentsLimit)
	}

	payments, err := h.svc.Payments(c.Request.Context(), callerOf(c).UserID, limit)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if payments == nil {
		payments = []billing.Payment{}
	}

	c.JSON(http.StatusOK, payments)
}
