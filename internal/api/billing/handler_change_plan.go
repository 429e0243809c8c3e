package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/service/subscription"
)

// ChangePlan upgrades now with an immediate prorated invoice or downgrades
// from the next billing period.
func (h *Handler) ChangePlan(c *gin.Context) {
	var body ChangePlanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apierror.BadRequest(c, middleware.BindingMessage(err))
		return
	}
	plan, _ := plans.ParseID(body.PlanID)
	cycle, _ := plans.ParseBillingCycle(body.BillingCycle)

	res, err := h.svc.Change(c.Request.Context(), callerOf(c).UserID, subscription.ChangeRequest{Plan: plan, Cycle: cycle})
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ChangePlanResponse{
		Subscription: toSubscriptionResponse(res.Subscription),
		Change:       res.Direction.String(),
		Message:      res.Message,
	})
}
