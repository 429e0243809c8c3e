package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/service/subscription"
)

const idempotencyKeyHeader = "Idempotency-Key"

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var body CheckoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apierror.BadRequest(c, middleware.BindingMessage(err))
		return
	}
	plan, _ := plans.ParseID(body.PlanID)
	cycle, _ := plans.ParseBillingCycle(body.BillingCycle)

	res, err := h.svc.CreateCheckout(c.Request.Context(), callerOf(c), subscription.CheckoutRequest{
		Plan:           plan,
		Cycle:          cycle,
		Locale:         body.Locale,
		IdempotencyKey: c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{CheckoutURL: res.URL, SessionID: res.SessionID})
}

func (h *Handler) CreateBillingPortal(c *gin.Context) {
	var body PortalRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		apierror.BadRequest(c, middleware.BindingMessage(err))
		return
	}

	url, err := h.svc.PortalURL(c.Request.Context(), callerOf(c).UserID, body.Locale)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
