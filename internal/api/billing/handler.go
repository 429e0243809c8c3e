package billing

import (
	"context"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/domain/billing"
	"saas-billing/internal/service/subscription"
)

// Service is the lifecycle surface the handlers call.
type Service interface {
	Current(ctx context.Context, userID string) (*billing.Subscription, error)
	CreateCheckout(ctx context.Context, caller subscription.Caller, req subscription.CheckoutRequest) (*subscription.CheckoutResult, error)
	Change(ctx context.Context, userID string, req subscription.ChangeRequest) (*subscription.ChangeResult, error)
	Cancel(ctx context.Context, userID string, req subscription.CancelRequest) (*subscription.CancelResult, error)
	PortalURL(ctx context.Context, userID, locale string) (string, error)
	Payments(ctx context.Context, userID string, limit int) ([]billing.Payment, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func callerOf(c *gin.Context) subscription.Caller {
	return subscription.Caller{
		UserID: c.GetString(middleware.UserIDKey),
		Email:  c.GetString(middleware.EmailKey),
	}
}
