package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/domain/users"
	"saas-billing/internal/repository"
	"saas-billing/internal/testsupport"
)

func TestStatsRepository_Summary(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	now := time.Now().UTC()

	for i, plan := range []plans.ID{plans.Free, plans.Free, plans.Pro} {
		require.NoError(t, db.Create(&users.User{
			ID:    fmt.Sprintf("user-%d", i),
			Email: fmt.Sprintf("u%d@example.com", i),
			Plan:  plan,
		}).Error)
	}
	for i, status := range []billing.Status{billing.StatusActive, billing.StatusCanceled, billing.StatusCanceled} {
		require.NoError(t, db.Create(&billing.Subscription{
			UserID:               "user-2",
			StripeSubscriptionID: fmt.Sprintf("sub_%d", i),
			Plan:                 plans.Pro,
			BillingCycle:         plans.Monthly,
			Status:               status,
			CurrentPeriodStart:   now,
			CurrentPeriodEnd:     now.AddDate(0, 1, 0),
		}).Error)
	}
	payments := []billing.Payment{
		{StripeInvoiceID: "in_1", Amount: 1900, Currency: "eur", Status: billing.PaymentSucceeded},
		{StripeInvoiceID: "in_2", Amount: 1900, Currency: "eur", Status: billing.PaymentRefunded, RefundedAmount: 900},
		{StripeInvoiceID: "in_3", Amount: 1000, Currency: "usd", Status: billing.PaymentSucceeded},
		{StripeInvoiceID: "in_4", Amount: 1900, Currency: "eur", Status: billing.PaymentFailed},
		// outside the window
		{StripeInvoiceID: "in_5", Amount: 5000, Currency: "eur", Status: billing.PaymentSucceeded, CreatedAt: now.AddDate(0, -2, 0)},
	}
	for i := range payments {
		require.NoError(t, db.Create(&payments[i]).Error)
	}

	summary, err := repository.NewStatsRepository(db).Summary(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"free": 2, "pro": 1}, summary.UsersPerPlan)
	assert.Equal(t, map[string]int64{"active": 1, "canceled": 2}, summary.SubscriptionsPerStatus)
	assert.Equal(t, map[string]int64{"eur": 2900, "usd": 1000}, summary.RevenueSince)
}

func TestStatsRepository_SummaryEmpty(t *testing.T) {
	summary, err := repository.NewStatsRepository(testsupport.NewDB(t)).Summary(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, summary.UsersPerPlan)
	assert.Empty(t, summary.RevenueSince)
}
