package webhook_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
	"saas-billing/internal/metrics"
	"saas-billing/internal/repository"
	svcwebhook "saas-billing/internal/service/webhook"
	"saas-billing/internal/testsupport"
)

const webhookSecret = "whsec_test_secret"

type fixture struct {
	db       *gorm.DB
	proc     *svcwebhook.Processor
	subs     *repository.SubscriptionRepository
	payments *repository.PaymentRepository
	events   *repository.WebhookEventRepository
	users    *repository.UserRepository
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db := testsupport.NewDB(t)
	f := &fixture{
		db:       db,
		subs:     repository.NewSubscriptionRepository(db),
		payments: repository.NewPaymentRepository(db),
		events:   repository.NewWebhookEventRepository(db),
		users:    repository.NewUserRepository(db),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	gateway := stripegw.New("sk_test_unused", webhookSecret, logger)
	f.proc = svcwebhook.NewProcessor(gateway, f.subs, f.payments, f.events, f.users, logger, f.metrics)

	_, err := f.users.Ensure(context.Background(), "user-1", "user1@example.com")
	require.NoError(t, err)
	return f
}

func (f *fixture) deliver(t *testing.T, id, eventType string, created time.Time, object map[string]any) svcwebhook.Result {
	t.Helper()
	payload, header := testsupport.SignedEvent(t, webhookSecret, id, eventType, created, object)
	res, err := f.proc.Process(context.Background(), payload, header)
	require.NoError(t, err)
	return res
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

var (
	periodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
)

func subscriptionObject(id, status string, md map[string]string) map[string]any {
	return map[string]any{
		"id":                   id,
		"object":               "subscription",
		"status":               status,
		"customer":             "cus_1",
		"current_period_start": periodStart.Unix(),
		"current_period_end":   periodEnd.Unix(),
		"cancel_at_period_end": false,
		"metadata":             md,
		"items": map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":     "si_1",
				"object": "subscription_item",
				"price":  map[string]any{"id": "price_starter_m", "object": "price", "product": "prod_starter"},
			}},
		},
	}
}

func starterMetadata() map[string]string {
	return map[string]string{"userId": "user-1", "planId": "starter", "billingCycle": "monthly"}
}

func invoiceObject(id, subscriptionID string, amountDue, amountPaid int64) map[string]any {
	return map[string]any{
		"id":             id,
		"object":         "invoice",
		"subscription":   subscriptionID,
		"customer":       "cus_1",
		"currency":       "eur",
		"amount_due":     amountDue,
		"amount_paid":    amountPaid,
		"payment_intent": "pi_1",
		"lines": map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":     "il_1",
				"object": "line_item",
				"period": map[string]any{"start": periodStart.Unix(), "end": periodEnd.Unix()},
			}},
		},
	}
}

func (f *fixture) createStarter(t *testing.T, created time.Time) {
	t.Helper()
	res := f.deliver(t, "evt_created", stripegw.TypeSubscriptionCreated, created,
		subscriptionObject("sub_1", "active", starterMetadata()))
	require.Equal(t, svcwebhook.OutcomeHandled, res.Outcome)
}

func TestProcess_MissingSignature(t *testing.T) {
	f := newFixture(t)
	payload, _ := testsupport.SignedEvent(t, webhookSecret, "evt_1", "customer.created", time.Now(), map[string]any{"id": "cus_1"})

	_, err := f.proc.Process(context.Background(), payload, "")
	require.Error(t, err)
	assert.Equal(t, billing.KindMissingSignature, billing.KindOf(err))
	assert.Equal(t, "Missing signature header", billing.MessageOf(err))
	assert.Zero(t, f.count(t, &billing.WebhookEvent{}))
}

func TestProcess_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	payload, header := testsupport.SignedEvent(t, "whsec_other", "evt_1", "customer.created", time.Now(), map[string]any{"id": "cus_1"})

	_, err := f.proc.Process(context.Background(), payload, header)
	require.Error(t, err)
	assert.Equal(t, billing.KindInvalidSignature, billing.KindOf(err))
	assert.Zero(t, f.count(t, &billing.WebhookEvent{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues("unknown", "rejected")))
}

func TestProcess_SubscriptionCreated(t *testing.T) {
	f := newFixture(t)
	f.createStarter(t, time.Now())

	sub, err := f.subs.FindByExternalID(context.Background(), "sub_1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, plans.Starter, sub.Plan)
	assert.Equal(t, plans.Monthly, sub.BillingCycle)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.Equal(t, "price_starter_m", sub.StripePriceID)
	assert.Equal(t, "prod_starter", sub.StripeProductID)
	assert.True(t, sub.CurrentPeriodEnd.Equal(periodEnd))

	u, err := f.users.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Starter, u.Plan)
}

func TestProcess_DuplicateDeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	f.createStarter(t, time.Now())

	first := f.deliver(t, "evt_paid", stripegw.TypeInvoicePaymentSucceeded, time.Now(), invoiceObject("in_1", "sub_1", 900, 900))
	second := f.deliver(t, "evt_paid", stripegw.TypeInvoicePaymentSucceeded, time.Now(), invoiceObject("in_1", "sub_1", 900, 900))

	assert.Equal(t, svcwebhook.OutcomeHandled, first.Outcome)
	assert.Equal(t, svcwebhook.OutcomeDuplicate, second.Outcome)
	assert.Equal(t, int64(1), f.count(t, &billing.Payment{}))

	ev, err := f.events.Get(context.Background(), "evt_paid")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.RetryCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(stripegw.TypeInvoicePaymentSucceeded, "duplicate")))
}

func TestProcess_OutOfOrderEventsDoNotFabricateRows(t *testing.T) {
	f := newFixture(t)

	updated := f.deliver(t, "evt_upd", stripegw.TypeSubscriptionUpdated, time.Now(),
		subscriptionObject("sub_unknown", "active", starterMetadata()))
	deleted := f.deliver(t, "evt_del", stripegw.TypeSubscriptionDeleted, time.Now(),
		subscriptionObject("sub_unknown", "canceled", starterMetadata()))

	assert.Equal(t, svcwebhook.OutcomeHandled, updated.Outcome)
	assert.Equal(t, svcwebhook.OutcomeHandled, deleted.Outcome)
	assert.Zero(t, f.count(t, &billing.Subscription{}))
	assert.Equal(t, int64(2), f.count(t, &billing.WebhookEvent{}))
}

func TestProcess_PaymentFailed(t *testing.T) {
	f := newFixture(t)
	f.createStarter(t, time.Now())

	res := f.deliver(t, "evt_failed", stripegw.TypeInvoicePaymentFailed, time.Now(), invoiceObject("in_2", "sub_1", 1500, 0))
	assert.Equal(t, svcwebhook.OutcomeHandled, res.Outcome)

	sub, err := f.subs.FindByExternalID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPastDue, sub.Status)

	var rows []billing.Payment
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, billing.PaymentFailed, rows[0].Status)
	assert.Equal(t, int64(1500), rows[0].Amount)
	require.NotNil(t, rows[0].SubscriptionID)
	assert.Equal(t, sub.ID, *rows[0].SubscriptionID)
}

func TestProcess_PaymentFailedForUnknownSubscriptionStillRecordsHistory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.SetStripeCustomerID(context.Background(), "user-1", "cus_1"))

	f.deliver(t, "evt_failed", stripegw.TypeInvoicePaymentFailed, time.Now(), invoiceObject("in_3", "sub_missing", 700, 0))

	assert.Zero(t, f.count(t, &billing.Subscription{}))
	var rows []billing.Payment
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].SubscriptionID)
	require.NotNil(t, rows[0].UserID)
	assert.Equal(t, "user-1", *rows[0].UserID)
}

func TestProcess_PaymentSucceededResetsMonthlyUsage(t *testing.T) {
	f := newFixture(t)
	f.createStarter(t, time.Now())
	require.NoError(t, f.db.Exec("UPDATE users SET usage_count = 17 WHERE id = ?", "user-1").Error)

	f.deliver(t, "evt_paid", stripegw.TypeInvoicePaymentSucceeded, time.Now(), invoiceObject("in_1", "sub_1", 900, 900))

	u, err := f.users.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.UsageCount)
	require.NotNil(t, u.UsageResetAt)
	assert.True(t, u.UsageResetAt.Equal(periodEnd))

	payments, err := f.payments.ListByUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(900), payments[0].Amount)
	assert.Equal(t, "eur", payments[0].Currency)
}

func TestProcess_PaymentSucceededWithoutSubscriptionIsSkipped(t *testing.T) {
	f := newFixture(t)

	res := f.deliver(t, "evt_paid", stripegw.TypeInvoicePaymentSucceeded, time.Now(), invoiceObject("in_1", "sub_missing", 900, 900))
	assert.Equal(t, svcwebhook.OutcomeHandled, res.Outcome)
	assert.Zero(t, f.count(t, &billing.Payment{}))
}

func TestProcess_SubscriptionDeleted(t *testing.T) {
	f := newFixture(t)
	f.createStarter(t, time.Now().Add(-time.Minute))

	f.deliver(t, "evt_del", stripegw.TypeSubscriptionDeleted, time.Now(),
		subscriptionObject("sub_1", "canceled", starterMetadata()))

	sub, err := f.subs.FindByExternalID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.WithinDuration(t, time.Now(), *sub.CanceledAt, time.Minute)

	u, err := f.users.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Free, u.Plan)
}

func TestProcess_StaleUpdateIsSkipped(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.createStarter(t, now)

	f.deliver(t, "evt_old", stripegw.TypeSubscriptionUpdated, now.Add(-time.Hour),
		subscriptionObject("sub_1", "past_due", starterMetadata()))

	sub, err := f.subs.FindByExternalID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, sub.Status)

	f.deliver(t, "evt_new", stripegw.TypeSubscriptionUpdated, now.Add(time.Minute),
		subscriptionObject("sub_1", "past_due", starterMetadata()))

	sub, err = f.subs.FindByExternalID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPastDue, sub.Status)
}

func TestProcess_IncompleteThenActivePromotesPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	f.deliver(t, "evt_created", stripegw.TypeSubscriptionCreated, now,
		subscriptionObject("sub_1", "incomplete", starterMetadata()))

	u, err := f.users.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Free, u.Plan)

	f.deliver(t, "evt_paid", stripegw.TypeSubscriptionUpdated, now.Add(time.Minute),
		subscriptionObject("sub_1", "active", starterMetadata()))

	sub, err := f.subs.FindByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, sub.Status)

	u, err = f.users.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Starter, u.Plan)
}

func TestProcess_LapsedUpdateDemotesPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.createStarter(t, now)

	// dunning keeps the plan
	f.deliver(t, "evt_past_due", stripegw.TypeSubscriptionUpdated, now.Add(time.Minute),
		subscriptionObject("sub_1", "past_due", starterMetadata()))
	u, err := f.users.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Starter, u.Plan)

	f.deliver(t, "evt_unpaid", stripegw.TypeSubscriptionUpdated, now.Add(2*time.Minute),
		subscriptionObject("sub_1", "unpaid", starterMetadata()))

	sub, err := f.subs.FindByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusUnpaid, sub.Status)

	u, err = f.users.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Free, u.Plan)
}

func TestProcess_LapsedUpdateKeepsPlanOfOtherLiveSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.createStarter(t, now)

	f.deliver(t, "evt_second", stripegw.TypeSubscriptionCreated, now.Add(time.Minute),
		subscriptionObject("sub_2", "trialing", starterMetadata()))
	f.deliver(t, "evt_expired", stripegw.TypeSubscriptionUpdated, now.Add(2*time.Minute),
		subscriptionObject("sub_1", "incomplete_expired", starterMetadata()))

	u, err := f.users.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, plans.Starter, u.Plan)
}

func TestProcess_CancelAtPeriodEndUpdateKeepsStatus(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.createStarter(t, now)

	obj := subscriptionObject("sub_1", "active", starterMetadata())
	obj["cancel_at_period_end"] = true
	f.deliver(t, "evt_cancel", stripegw.TypeSubscriptionUpdated, now.Add(time.Minute), obj)

	sub, err := f.subs.FindByExternalID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, sub.Status)
	require.NotNil(t, sub.CancelAt)
	assert.True(t, sub.CancelAt.Equal(periodEnd))
}

func TestProcess_UnknownTypeIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	res := f.deliver(t, "evt_cus", "customer.created", time.Now(), map[string]any{"id": "cus_9", "object": "customer"})
	assert.Equal(t, svcwebhook.OutcomeIgnored, res.Outcome)

	ev, err := f.events.Get(context.Background(), "evt_cus")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "cus_9", ev.ObjectID)
	assert.Equal(t, "customer", ev.ObjectType)
	assert.Equal(t, billing.WebhookProcessed, ev.Status)
}

func TestProcess_HandlerFailureIsRecordedAndAcknowledged(t *testing.T) {
	f := newFixture(t)

	res := f.deliver(t, "evt_bad", stripegw.TypeSubscriptionCreated, time.Now(),
		subscriptionObject("sub_2", "active", map[string]string{"planId": "starter"}))
	assert.Equal(t, svcwebhook.OutcomeFailed, res.Outcome)

	ev, err := f.events.Get(context.Background(), "evt_bad")
	require.NoError(t, err)
	assert.Equal(t, billing.WebhookFailed, ev.Status)
	require.NotNil(t, ev.Error)
	assert.Contains(t, *ev.Error, "userId")
	assert.Zero(t, f.count(t, &billing.Subscription{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(stripegw.TypeSubscriptionCreated, "failed")))

	// a redelivery of a failed event is still a duplicate
	again := f.deliver(t, "evt_bad", stripegw.TypeSubscriptionCreated, time.Now(),
		subscriptionObject("sub_2", "active", map[string]string{"planId": "starter"}))
	assert.Equal(t, svcwebhook.OutcomeDuplicate, again.Outcome)
}

func TestProcess_ChargeRefunded(t *testing.T) {
	f := newFixture(t)
	f.createStarter(t, time.Now())
	f.deliver(t, "evt_paid", stripegw.TypeInvoicePaymentSucceeded, time.Now(), invoiceObject("in_1", "sub_1", 900, 900))

	f.deliver(t, "evt_refund", stripegw.TypeChargeRefunded, time.Now(), map[string]any{
		"id":              "ch_1",
		"object":          "charge",
		"invoice":         "in_1",
		"amount":          900,
		"amount_refunded": 900,
		"refunded":        true,
	})

	payments, err := f.payments.ListByUser(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, billing.PaymentRefunded, payments[0].Status)
	assert.Equal(t, int64(900), payments[0].RefundedAmount)
	assert.NotNil(t, payments[0].RefundedAt)
}
