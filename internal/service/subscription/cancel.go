package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
)

type CancelRequest struct {
	Immediately bool
	Reason      string
}

type CancelResult struct {
	SubscriptionID string
	CancelAt       *time.Time
	Message        string
}

// Cancel ends the live subscription now, or flags it to end with the current
// period. A deferred cancellation leaves the status untouched until the
// provider deletes the subscription at period end.
func (s *Service) Cancel(ctx context.Context, userID string, req CancelRequest) (res *CancelResult, err error) {
	defer func() { s.metrics.RecordOperation("cancel", err) }()

	current, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("user_id", userID), zap.String("subscription_id", current.StripeSubscriptionID))

	remote, err := s.gateway.CancelSubscription(ctx, current.StripeSubscriptionID, req.Immediately)
	if err != nil {
		return nil, billing.Internal("failed to cancel subscription", err)
	}

	var patch billing.SubscriptionPatch
	if req.Reason != "" {
		patch.CancelReason = &req.Reason
	}

	if req.Immediately {
		canceledAt := stripegw.Unix(remote.CanceledAt)
		if canceledAt == nil {
			now := s.now().UTC()
			canceledAt = &now
		}
		status := billing.StatusCanceled
		patch.Status = &status
		patch.CanceledAt = billing.NullTime(canceledAt)

		if _, err := s.subscriptions.Update(ctx, current.ID, patch); err != nil {
			return nil, billing.Internal("failed to store cancellation", err)
		}
		if _, err := s.users.SetPlan(ctx, userID, plans.Free); err != nil {
			return nil, billing.Internal("failed to store plan", err)
		}
		log.Info("subscription canceled immediately")
		return &CancelResult{
			SubscriptionID: current.StripeSubscriptionID,
			CancelAt:       canceledAt,
			Message:        "Your subscription has been canceled.",
		}, nil
	}

	cancelAt := stripegw.Unix(remote.CurrentPeriodEnd)
	if cancelAt == nil {
		cancelAt = stripegw.CancelAt(remote)
	}
	if cancelAt == nil {
		return nil, billing.Internal("provider returned no period end", nil)
	}
	patch.CancelAt = billing.NullTime(cancelAt)
	if _, err := s.subscriptions.Update(ctx, current.ID, patch); err != nil {
		return nil, billing.Internal("failed to store cancellation", err)
	}

	log.Info("subscription set to cancel at period end", zap.Time("cancel_at", *cancelAt))
	return &CancelResult{
		SubscriptionID: current.StripeSubscriptionID,
		CancelAt:       cancelAt,
		Message:        fmt.Sprintf("Your subscription stays active until the end of the billing period, effective on %s.", cancelAt.Format("2006-01-02")),
	}, nil
}
