package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/service/subscription"
)

// CancelSubscription ends the subscription at period end, or right away when
// the body says immediately. An empty body cancels at period end.
func (h *Handler) CancelSubscription(c *gin.Context) {
	var body CancelRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		apierror.BadRequest(c, middleware.BindingMessage(err))
		return
	}

	res, err := h.svc.Cancel(c.Request.Context(), callerOf(c).UserID, subscription.CancelRequest{
		Immediately: body.Immediately,
		Reason:      body.Reason,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, CancelResponse{
		SubscriptionID: res.SubscriptionID,
		CancelAt:       res.CancelAt,
		Message:        res.Message,
	})
}
