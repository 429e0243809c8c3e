package jobs

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
	"saas-billing/internal/metrics"
)

type SubscriptionProvider interface {
	RetrieveSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type SubscriptionStore interface {
	ListByStatus(ctx context.Context, statuses []billing.Status) ([]billing.Subscription, error)
	FindActiveByUserID(ctx context.Context, userID string) (*billing.Subscription, error)
	Update(ctx context.Context, id uint, patch billing.SubscriptionPatch) (*billing.Subscription, error)
}

type PlanStore interface {
	SetPlan(ctx context.Context, id string, plan plans.ID) (bool, error)
}

// Reconciler compares local live subscriptions with Stripe and copies the
// provider's lifecycle fields over any that drifted, covering webhooks that
// never arrived.
type Reconciler struct {
	provider      SubscriptionProvider
	subscriptions SubscriptionStore
	users         PlanStore
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

func NewReconciler(provider SubscriptionProvider, subscriptions SubscriptionStore, users PlanStore, logger *zap.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		provider:      provider,
		subscriptions: subscriptions,
		users:         users,
		logger:        logger.Named("reconciler"),
		metrics:       m,
	}
}

type Report struct {
	Checked   int
	Corrected int
	Failed    int
}

// Run performs one sweep. Only a failure to list local rows is returned;
// per-subscription failures are logged and counted in the report.
func (r *Reconciler) Run(ctx context.Context) (report Report, err error) {
	start := time.Now()
	defer func() { r.metrics.RecordReconcileRun(err) }()

	subs, err := r.subscriptions.ListByStatus(ctx, billing.ReconcilableStatuses)
	if err != nil {
		r.logger.Error("failed to list subscriptions", zap.Error(err))
		return report, err
	}

	for _, local := range subs {
		if ctx.Err() != nil {
			r.logger.Warn("reconciliation interrupted", zap.Error(ctx.Err()))
			break
		}
		report.Checked++

		corrected, err := r.reconcile(ctx, local)
		if err != nil {
			report.Failed++
			r.logger.Error("failed to reconcile subscription",
				zap.String("subscription_id", local.StripeSubscriptionID), zap.Error(err))
			continue
		}
		if corrected {
			report.Corrected++
		}
	}

	r.logger.Info("reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("corrected", report.Corrected),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

// reconcile keeps the denormalized plan in step with the corrected status: a
// subscription that turned live grants its plan, a lapsed one demotes the user
// unless another live subscription remains.
func (r *Reconciler) reconcile(ctx context.Context, local billing.Subscription) (bool, error) {
	remote, err := r.provider.RetrieveSubscription(ctx, local.StripeSubscriptionID)
	if err != nil {
		return false, err
	}
	if !stripegw.Drifted(local, remote) {
		return false, nil
	}

	updated, err := r.subscriptions.Update(ctx, local.ID, stripegw.SnapshotPatch(remote))
	if err != nil {
		return false, err
	}
	r.metrics.RecordReconcileDrift()
	r.logger.Warn("subscription drift corrected",
		zap.String("subscription_id", local.StripeSubscriptionID),
		zap.String("local_status", string(local.Status)),
		zap.String("remote_status", string(remote.Status)),
	)

	switch {
	case updated == nil:
		return true, nil
	case updated.Status.Live() && !local.Status.Live():
		if _, err := r.users.SetPlan(ctx, local.UserID, updated.Plan); err != nil {
			return true, err
		}
		return true, nil
	case !updated.Status.Lapsed():
		return true, nil
	}
	other, err := r.subscriptions.FindActiveByUserID(ctx, local.UserID)
	if err != nil {
		return true, err
	}
	if other == nil {
		if _, err := r.users.SetPlan(ctx, local.UserID, plans.Free); err != nil {
			return true, err
		}
	}
	return true, nil
}
