package billing

import (
	"database/sql"
	"time"

	"saas-billing/internal/domain/plans"
)

type Status string

const (
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
)

// LiveStatuses are the statuses under which a subscription still belongs to its user.
var LiveStatuses = []Status{StatusActive, StatusTrialing}

// ReconcilableStatuses are the statuses the reconciliation sweep compares with the provider.
var ReconcilableStatuses = []Status{StatusActive, StatusTrialing, StatusPastDue}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled,
		StatusUnpaid, StatusIncomplete, StatusIncompleteExpired:
		return st, true
	}
	return "", false
}

func (s Status) Live() bool {
	return s == StatusActive || s == StatusTrialing
}

// Lapsed reports whether the subscription no longer entitles its user to the
// plan. past_due is still in dunning and keeps the plan.
func (s Status) Lapsed() bool {
	return s == StatusCanceled || s == StatusUnpaid || s == StatusIncompleteExpired
}

// Subscription is the local mirror of one provider subscription.
// Rows are never deleted; cancellation is a status transition.
type Subscription struct {
	ID     uint   `gorm:"primaryKey"`
	UserID string `gorm:"type:varchar(36);not null;index"`

	StripeSubscriptionID string `gorm:"column:stripe_subscription_id;not null;uniqueIndex:idx_subscriptions_stripe_id"`
	StripePriceID        string `gorm:"column:stripe_price_id"`
	StripeProductID      string `gorm:"column:stripe_product_id"`

	Plan         plans.ID           `gorm:"type:varchar(16);not null"`
	BillingCycle plans.BillingCycle `gorm:"type:varchar(16);not null"`
	Status       Status             `gorm:"type:varchar(32);not null;index"`

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAt           *time.Time
	CanceledAt         *time.Time
	CancelReason       *string
	TrialStart         *time.Time
	TrialEnd           *time.Time

	// provider timestamp of the newest event applied to this row
	LastEventAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionPatch is a partial update. Nil fields are left untouched;
// a non-nil sql.NullTime with Valid=false clears the column.
type SubscriptionPatch struct {
	Plan            *plans.ID
	BillingCycle    *plans.BillingCycle
	StripePriceID   *string
	StripeProductID *string
	Status          *Status

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAt           *sql.NullTime
	CanceledAt         *sql.NullTime
	CancelReason       *string
	TrialStart         *sql.NullTime
	TrialEnd           *sql.NullTime

	LastEventAt *time.Time
}

// Columns renders the patch as a gorm column map.
func (p SubscriptionPatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.Plan != nil {
		cols["plan"] = *p.Plan
	}
	if p.BillingCycle != nil {
		cols["billing_cycle"] = *p.BillingCycle
	}
	if p.StripePriceID != nil {
		cols["stripe_price_id"] = *p.StripePriceID
	}
	if p.StripeProductID != nil {
		cols["stripe_product_id"] = *p.StripeProductID
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.CurrentPeriodStart != nil {
		cols["current_period_start"] = *p.CurrentPeriodStart
	}
	if p.CurrentPeriodEnd != nil {
		cols["current_period_end"] = *p.CurrentPeriodEnd
	}
	if p.CancelAt != nil {
		cols["cancel_at"] = nullable(*p.CancelAt)
	}
	if p.CanceledAt != nil {
		cols["canceled_at"] = nullable(*p.CanceledAt)
	}
	if p.CancelReason != nil {
		cols["cancel_reason"] = *p.CancelReason
	}
	if p.TrialStart != nil {
		cols["trial_start"] = nullable(*p.TrialStart)
	}
	if p.TrialEnd != nil {
		cols["trial_end"] = nullable(*p.TrialEnd)
	}
	if p.LastEventAt != nil {
		cols["last_event_at"] = *p.LastEventAt
	}
	return cols
}

func (p SubscriptionPatch) Empty() bool {
	return len(p.Columns()) == 0
}

func nullable(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time
}

// NullTime builds a patch value from an optional timestamp.
func NullTime(t *time.Time) *sql.NullTime {
	if t == nil {
		return &sql.NullTime{}
	}
	return &sql.NullTime{Time: *t, Valid: true}
}
