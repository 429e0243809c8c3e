package webhook

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/infra/stripegw"
)

// subscriptionCreated inserts the local row. Plan and cycle come from the
// metadata stamped at checkout, never from a price lookup.
func (p *Processor) subscriptionCreated(ctx context.Context, e stripegw.SubscriptionCreated, log *zap.Logger) error {
	sub := e.Subscription
	md, err := stripegw.ParseSubscriptionMetadata(sub.Metadata)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	status, ok := stripegw.Status(sub.Status)
	if !ok {
		return fmt.Errorf("subscription %s: unknown status %q", sub.ID, sub.Status)
	}
	log = log.With(zap.String("subscription_id", sub.ID), zap.String("user_id", md.UserID))

	existing, err := p.subscriptions.FindByExternalID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.LastEventAt != nil && e.Created.Before(*existing.LastEventAt) {
			log.Warn("subscription already stored with newer state, created event skipped")
			return nil
		}
		// redelivered under a new event id; converge on the snapshot
		log.Info("subscription already stored, applying snapshot")
		patch := p.snapshot(e.EventMeta, sub)
		patch.Plan, patch.BillingCycle = &md.PlanID, &md.Cycle
		if _, err := p.subscriptions.UpdateByExternalID(ctx, sub.ID, patch); err != nil {
			return err
		}
	} else {
		row := &billing.Subscription{
			UserID:               md.UserID,
			StripeSubscriptionID: sub.ID,
			Plan:                 md.PlanID,
			BillingCycle:         md.Cycle,
			Status:               status,
			CancelAt:             stripegw.CancelAt(sub),
			CanceledAt:           stripegw.Unix(sub.CanceledAt),
			TrialStart:           stripegw.Unix(sub.TrialStart),
			TrialEnd:             stripegw.Unix(sub.TrialEnd),
			LastEventAt:          &e.Created,
		}
		if start := stripegw.Unix(sub.CurrentPeriodStart); start != nil {
			row.CurrentPeriodStart = *start
		}
		if end := stripegw.Unix(sub.CurrentPeriodEnd); end != nil {
			row.CurrentPeriodEnd = *end
		}
		if price := stripegw.PrimaryPrice(sub); price != nil {
			row.StripePriceID = price.ID
			if price.Product != nil {
				row.StripeProductID = price.Product.ID
			}
		}
		if _, err := p.subscriptions.Create(ctx, row); err != nil {
			return err
		}
		log.Info("subscription created", zap.String("plan", string(md.PlanID)), zap.String("status", string(status)))
	}

	if !status.Live() {
		return nil
	}
	return p.setPlan(ctx, md.UserID, md.PlanID, log)
}

// subscriptionUpdated applies the event's snapshot unless a newer event has
// already been applied to the row.
func (p *Processor) subscriptionUpdated(ctx context.Context, e stripegw.SubscriptionUpdated, log *zap.Logger) error {
	sub := e.Subscription
	log = log.With(zap.String("subscription_id", sub.ID))

	existing, err := p.subscriptions.FindByExternalID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		log.Warn("subscription not found, update skipped")
		return nil
	}
	if existing.LastEventAt != nil && e.Created.Before(*existing.LastEventAt) {
		log.Warn("stale subscription snapshot skipped",
			zap.Time("event_created", e.Created), zap.Time("last_event_at", *existing.LastEventAt))
		return nil
	}

	patch := p.snapshot(e.EventMeta, sub)
	if md, err := stripegw.ParseSubscriptionMetadata(sub.Metadata); err == nil {
		patch.Plan, patch.BillingCycle = &md.PlanID, &md.Cycle
	}

	updated, err := p.subscriptions.UpdateByExternalID(ctx, sub.ID, patch)
	if err != nil {
		return err
	}
	if updated == nil {
		log.Warn("subscription disappeared during update")
		return nil
	}
	switch {
	case updated.Status.Live() && (!existing.Status.Live() || updated.Plan != existing.Plan):
		log.Info("subscription live, plan granted", zap.String("plan", string(updated.Plan)), zap.String("status", string(updated.Status)))
		return p.setPlan(ctx, updated.UserID, updated.Plan, log)
	case updated.Status.Lapsed() && !existing.Status.Lapsed():
		log.Info("subscription lapsed", zap.String("status", string(updated.Status)))
		return p.demote(ctx, updated.UserID, log)
	}
	return nil
}

// subscriptionDeleted ends the subscription locally and demotes the user,
// unless the user already holds another live subscription.
func (p *Processor) subscriptionDeleted(ctx context.Context, e stripegw.SubscriptionDeleted, log *zap.Logger) error {
	sub := e.Subscription
	log = log.With(zap.String("subscription_id", sub.ID))

	existing, err := p.subscriptions.FindByExternalID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		log.Warn("subscription not found, delete skipped")
		return nil
	}

	status := billing.StatusCanceled
	now := p.now().UTC()
	patch := billing.SubscriptionPatch{
		Status:     &status,
		CanceledAt: billing.NullTime(&now),
	}
	if existing.LastEventAt == nil || e.Created.After(*existing.LastEventAt) {
		patch.LastEventAt = &e.Created
	}
	if _, err := p.subscriptions.UpdateByExternalID(ctx, sub.ID, patch); err != nil {
		return err
	}

	log.Info("subscription canceled", zap.String("user_id", existing.UserID))
	return p.demote(ctx, existing.UserID, log)
}

// snapshot is the lifecycle patch for sub plus its price and the event time.
func (p *Processor) snapshot(meta stripegw.EventMeta, sub *stripe.Subscription) billing.SubscriptionPatch {
	patch := stripegw.SnapshotPatch(sub)
	if price := stripegw.PrimaryPrice(sub); price != nil {
		patch.StripePriceID = &price.ID
		if price.Product != nil {
			patch.StripeProductID = &price.Product.ID
		}
	}
	created := meta.Created
	patch.LastEventAt = &created
	return patch
}
