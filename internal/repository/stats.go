package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/users"
)

type BillingSummary struct {
	UsersPerPlan           map[string]int64
	SubscriptionsPerStatus map[string]int64
	// net of refunds, minor units per currency
	RevenueSince map[string]int64
}

type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

type groupCount struct {
	Name  string
	Count int64
}

// Summary aggregates plan distribution, subscription statuses and revenue
// collected since the given instant.
func (r *StatsRepository) Summary(ctx context.Context, since time.Time) (*BillingSummary, error) {
	db := r.db.WithContext(ctx)
	out := &BillingSummary{
		UsersPerPlan:           map[string]int64{},
		SubscriptionsPerStatus: map[string]int64{},
		RevenueSince:           map[string]int64{},
	}

	var perPlan []groupCount
	if err := db.Model(&users.User{}).
		Select("plan AS name, COUNT(*) AS count").
		Group("plan").
		Scan(&perPlan).Error; err != nil {
		return nil, fmt.Errorf("failed to count users per plan: %w", err)
	}
	for _, g := range perPlan {
		out.UsersPerPlan[g.Name] = g.Count
	}

	var perStatus []groupCount
	if err := db.Model(&billing.Subscription{}).
		Select("status AS name, COUNT(*) AS count").
		Group("status").
		Scan(&perStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions per status: %w", err)
	}
	for _, g := range perStatus {
		out.SubscriptionsPerStatus[g.Name] = g.Count
	}

	var revenue []groupCount
	if err := db.Model(&billing.Payment{}).
		Select("currency AS name, COALESCE(SUM(amount - refunded_amount), 0) AS count").
		Where("status IN ? AND created_at >= ?", []billing.PaymentStatus{billing.PaymentSucceeded, billing.PaymentRefunded}, since).
		Group("currency").
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	for _, g := range revenue {
		out.RevenueSince[g.Name] = g.Count
	}
	return out, nil
}
