package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
)

// GetSubscription returns the caller's live subscription or 404.
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.svc.Current(c.Request.Context(), callerOf(c).UserID)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toSubscriptionResponse(sub))
}
