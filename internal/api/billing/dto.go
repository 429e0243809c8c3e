package billing

import (
	"time"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
)

type CheckoutRequest struct {
	PlanID       string `json:"planId" binding:"required,plan_slug"`
	BillingCycle string `json:"billingCycle" binding:"required,billing_cycle"`
	Locale       string `json:"locale" binding:"max=35"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

type ChangePlanRequest struct {
	PlanID       string `json:"planId" binding:"required,plan_slug"`
	BillingCycle string `json:"billingCycle" binding:"required,billing_cycle"`
}

type ChangePlanResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Change       string               `json:"change"`
	Message      string               `json:"message"`
}

type CancelRequest struct {
	Immediately bool   `json:"immediately"`
	Reason      string `json:"reason" binding:"max=500"`
}

type CancelResponse struct {
	SubscriptionID string     `json:"subscriptionId"`
	CancelAt       *time.Time `json:"cancelAt"`
	Message        string     `json:"message"`
}

type PortalRequest struct {
	Locale string `json:"locale" binding:"max=35"`
}

type SubscriptionResponse struct {
	ID                 string             `json:"id"`
	Plan               plans.ID           `json:"plan"`
	BillingCycle       plans.BillingCycle `json:"billingCycle"`
	Status             billing.Status     `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	CancelAt           *time.Time         `json:"cancelAt"`
	CanceledAt         *time.Time         `json:"canceledAt"`
	TrialEnd           *time.Time         `json:"trialEnd,omitempty"`
}

func toSubscriptionResponse(s *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 s.StripeSubscriptionID,
		Plan:               s.Plan,
		BillingCycle:       s.BillingCycle,
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAt != nil && s.CanceledAt == nil,
		CancelAt:           s.CancelAt,
		CanceledAt:         s.CanceledAt,
		TrialEnd:           s.TrialEnd,
	}
}
