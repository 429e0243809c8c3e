package users

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/domain/users"
)

type Profiles interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

type Subscriptions interface {
	FindActiveByUserID(ctx context.Context, userID string) (*billing.Subscription, error)
}

type Handler struct {
	profiles      Profiles
	subscriptions Subscriptions
}

func NewHandler(profiles Profiles, subscriptions Subscriptions) *Handler {
	return &Handler{profiles: profiles, subscriptions: subscriptions}
}

// GetCurrentUser returns the caller's billing profile. Profiles are created on
// first checkout, so an unknown caller is reported on the free plan.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.UserIDKey)

	user, err := h.profiles.Get(ctx, userID)
	if err != nil {
		apierror.Respond(c, billing.Internal("failed to load profile", err))
		return
	}
	sub, err := h.subscriptions.FindActiveByUserID(ctx, userID)
	if err != nil {
		apierror.Respond(c, billing.Internal("failed to load subscription", err))
		return
	}

	resp := MeResponse{
		User: UserDTO{
			ID:    userID,
			Email: c.GetString(middleware.EmailKey),
			Role:  c.GetString(middleware.RoleKey),
		},
		Billing: BillingDTO{
			Plan:         plans.Free,
			PlanName:     plans.Free.Title(),
			Subscription: buildSubscriptionDTO(sub),
		},
	}
	if user != nil {
		if user.Email != "" {
			resp.User.Email = user.Email
		}
		resp.Billing.Plan = user.Plan
		resp.Billing.PlanName = user.Plan.Title()
		resp.Billing.HasBillingAccount = user.HasCustomer()
		resp.Billing.Usage = UsageDTO{Count: user.UsageCount, ResetAt: user.UsageResetAt}
	}

	c.JSON(http.StatusOK, resp)
}
