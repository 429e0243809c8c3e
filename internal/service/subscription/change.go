package subscription

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
)

type ChangeRequest struct {
	Plan  plans.ID
	Cycle plans.BillingCycle
}

type ChangeResult struct {
	Subscription *billing.Subscription
	Direction    plans.Direction
	Message      string
}

// Change moves the live subscription to another plan or cycle. Direction
// follows the fixed plan order: upgrades are invoiced immediately, downgrades
// take effect at renewal without proration. A cycle switch on the same plan is
// treated like an upgrade.
func (s *Service) Change(ctx context.Context, userID string, req ChangeRequest) (res *ChangeResult, err error) {
	defer func() { s.metrics.RecordOperation("change_plan", err) }()

	current, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !req.Plan.Paid() {
		return nil, billing.InvalidRequest("Cancel the subscription to move to the free plan", nil)
	}
	if current.Plan == req.Plan && current.BillingCycle == req.Cycle {
		return nil, billing.InvalidRequest("You are already on this plan", nil)
	}

	price, err := s.prices.ResolvePrice(ctx, req.Plan, req.Cycle)
	if err != nil {
		return nil, resolveError(err)
	}

	direction := plans.ChangeDirection(current.Plan, req.Plan)
	change := stripegw.SubscriptionChange{
		PriceID:  price.PriceID,
		Metadata: stripegw.SubscriptionMetadata{UserID: userID, PlanID: req.Plan, Cycle: req.Cycle}.Map(),
	}
	if direction == plans.Downgrade {
		change.ProrationBehavior = stripegw.ProrationNone
		// the provider only keeps the anchor when the interval is unchanged
		change.KeepBillingAnchor = req.Cycle == current.BillingCycle
	} else {
		change.ProrationBehavior = stripegw.ProrationAlwaysInvoice
	}

	remote, err := s.gateway.UpdateSubscription(ctx, current.StripeSubscriptionID, change)
	if err != nil {
		return nil, billing.Internal("failed to update subscription", err)
	}

	patch := stripegw.SnapshotPatch(remote)
	patch.Plan, patch.BillingCycle = &req.Plan, &req.Cycle
	patch.StripePriceID, patch.StripeProductID = &price.PriceID, &price.ProductID
	updated, err := s.subscriptions.Update(ctx, current.ID, patch)
	if err != nil {
		return nil, billing.Internal("failed to store subscription change", err)
	}
	if updated == nil {
		return nil, billing.Internal("subscription vanished during update", nil)
	}
	if _, err := s.users.SetPlan(ctx, userID, req.Plan); err != nil {
		return nil, billing.Internal("failed to store plan", err)
	}

	s.logger.Info("subscription plan changed",
		zap.String("user_id", userID),
		zap.String("subscription_id", current.StripeSubscriptionID),
		zap.String("from", string(current.Plan)),
		zap.String("to", string(req.Plan)),
		zap.Stringer("direction", direction),
	)
	return &ChangeResult{Subscription: updated, Direction: direction, Message: changeMessage(direction, req, updated)}, nil
}

func changeMessage(direction plans.Direction, req ChangeRequest, sub *billing.Subscription) string {
	switch direction {
	case plans.Upgrade:
		return fmt.Sprintf("Upgraded to %s. The prorated difference has been invoiced.", req.Plan.Title())
	case plans.Downgrade:
		return fmt.Sprintf("Switched to %s. The new price applies from your next billing period on %s.",
			req.Plan.Title(), sub.CurrentPeriodEnd.Format("2006-01-02"))
	}
	return fmt.Sprintf("Billing cycle changed to %s.", req.Cycle)
}
