package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/repository"
	"saas-billing/internal/testsupport"
)

func strPtr(s string) *string { return &s }

func TestPaymentRepository_AppendIsIdempotentPerInvoiceOutcome(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentRepository(testsupport.NewDB(t))

	p := func(status billing.PaymentStatus) *billing.Payment {
		return &billing.Payment{
			UserID:          strPtr("user-1"),
			StripeInvoiceID: "in_1",
			Amount:          1500,
			Currency:        "eur",
			Status:          status,
		}
	}

	inserted, err := repo.Append(ctx, p(billing.PaymentFailed))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Append(ctx, p(billing.PaymentFailed))
	require.NoError(t, err)
	assert.False(t, inserted)

	// the retry that finally succeeds gets its own row
	inserted, err = repo.Append(ctx, p(billing.PaymentSucceeded))
	require.NoError(t, err)
	assert.True(t, inserted)

	rows, err := repo.ListByUser(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPaymentRepository_ListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentRepository(testsupport.NewDB(t))

	for _, inv := range []string{"in_1", "in_2", "in_3"} {
		_, err := repo.Append(ctx, &billing.Payment{
			UserID:          strPtr("user-1"),
			StripeInvoiceID: inv,
			Amount:          900,
			Status:          billing.PaymentSucceeded,
		})
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, &billing.Payment{UserID: strPtr("user-2"), StripeInvoiceID: "in_x", Status: billing.PaymentSucceeded})
	require.NoError(t, err)

	rows, err := repo.ListByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "in_3", rows[0].StripeInvoiceID)
	assert.Equal(t, "in_2", rows[1].StripeInvoiceID)
}

func TestPaymentRepository_MarkRefunded(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentRepository(testsupport.NewDB(t))

	_, err := repo.Append(ctx, &billing.Payment{
		UserID:          strPtr("user-1"),
		StripeInvoiceID: "in_1",
		Amount:          2000,
		Status:          billing.PaymentSucceeded,
	})
	require.NoError(t, err)

	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	p, err := repo.MarkRefunded(ctx, "in_1", 500, false, at)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(500), p.RefundedAmount)
	assert.Equal(t, billing.PaymentSucceeded, p.Status)

	p, err = repo.MarkRefunded(ctx, "in_1", 2000, true, at)
	require.NoError(t, err)
	assert.Equal(t, billing.PaymentRefunded, p.Status)

	p, err = repo.MarkRefunded(ctx, "in_unknown", 100, true, at)
	require.NoError(t, err)
	assert.Nil(t, p)
}
