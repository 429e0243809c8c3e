package users

import (
	"time"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
)

type MeResponse struct {
	User    UserDTO    `json:"user"`
	Billing BillingDTO `json:"billing"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	Plan              plans.ID         `json:"plan"`
	PlanName          string           `json:"planName"`
	HasBillingAccount bool             `json:"hasBillingAccount"`
	Subscription      *SubscriptionDTO `json:"subscription"`
	Usage             UsageDTO         `json:"usage"`
}

type SubscriptionDTO struct {
	ID               string             `json:"id"`
	Status           billing.Status     `json:"status"`
	BillingCycle     plans.BillingCycle `json:"billingCycle"`
	CurrentPeriodEnd time.Time          `json:"currentPeriodEnd"`
	CancelAt         *time.Time         `json:"cancelAt"`
}

type UsageDTO struct {
	Count   int        `json:"count"`
	ResetAt *time.Time `json:"resetAt"`
}

func buildSubscriptionDTO(s *billing.Subscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:               s.StripeSubscriptionID,
		Status:           s.Status,
		BillingCycle:     s.BillingCycle,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CancelAt:         s.CancelAt,
	}
}
