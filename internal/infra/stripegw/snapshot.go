package stripegw

import (
	"time"

	"github.com/stripe/stripe-go/v75"

	"saas-billing/internal/domain/billing"
)

// Unix converts a provider timestamp; zero means unset.
func Unix(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// PrimaryPrice returns the price of the first subscription item, if any.
func PrimaryPrice(sub *stripe.Subscription) *stripe.Price {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0].Price
}

// SnapshotPatch renders the provider's view of a subscription's lifecycle
// fields (status, period bounds, cancellation, trial) as a local patch.
func SnapshotPatch(sub *stripe.Subscription) billing.SubscriptionPatch {
	var p billing.SubscriptionPatch

	if st, ok := Status(sub.Status); ok {
		p.Status = &st
	}
	p.CurrentPeriodStart = Unix(sub.CurrentPeriodStart)
	p.CurrentPeriodEnd = Unix(sub.CurrentPeriodEnd)
	p.CancelAt = billing.NullTime(CancelAt(sub))
	p.CanceledAt = billing.NullTime(Unix(sub.CanceledAt))
	p.TrialStart = billing.NullTime(Unix(sub.TrialStart))
	p.TrialEnd = billing.NullTime(Unix(sub.TrialEnd))

	if sub.CancellationDetails != nil && sub.CancellationDetails.Reason != "" {
		reason := string(sub.CancellationDetails.Reason)
		p.CancelReason = &reason
	}
	return p
}

// CancelAt is the instant the subscription stops renewing. A flag to cancel
// at period end without an explicit cancel_at resolves to the period end.
func CancelAt(sub *stripe.Subscription) *time.Time {
	if sub.CancelAt != 0 {
		return Unix(sub.CancelAt)
	}
	if sub.CancelAtPeriodEnd {
		return Unix(sub.CurrentPeriodEnd)
	}
	return nil
}

// Drifted reports whether the provider snapshot disagrees with the stored row
// on any field the reconciliation sweep owns.
func Drifted(local billing.Subscription, remote *stripe.Subscription) bool {
	if st, ok := Status(remote.Status); ok && st != local.Status {
		return true
	}
	if end := Unix(remote.CurrentPeriodEnd); end != nil && !end.Equal(local.CurrentPeriodEnd) {
		return true
	}
	return !sameInstant(local.CancelAt, CancelAt(remote)) ||
		!sameInstant(local.CanceledAt, Unix(remote.CanceledAt))
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
