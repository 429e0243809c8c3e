package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/repository"
	"saas-billing/internal/testsupport"
)

func TestWebhookEventRepository_RecordDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWebhookEventRepository(testsupport.NewDB(t))

	ev := func() *billing.WebhookEvent {
		return &billing.WebhookEvent{StripeEventID: "evt_1", Type: "invoice.payment_succeeded", Payload: "{}"}
	}

	recorded, err := repo.Record(ctx, ev())
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = repo.Record(ctx, ev())
	require.NoError(t, err)
	assert.False(t, recorded)

	require.NoError(t, repo.IncrementRetry(ctx, "evt_1"))
	require.NoError(t, repo.IncrementRetry(ctx, "evt_1"))

	stored, err := repo.Get(ctx, "evt_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, billing.WebhookProcessed, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)
}

func TestWebhookEventRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWebhookEventRepository(testsupport.NewDB(t))

	_, err := repo.Record(ctx, &billing.WebhookEvent{StripeEventID: "evt_2", Type: "customer.subscription.created"})
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, "evt_2", errors.New("boom")))

	stored, err := repo.Get(ctx, "evt_2")
	require.NoError(t, err)
	assert.Equal(t, billing.WebhookFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "boom", *stored.Error)
}
