// Package webhook ingests Stripe deliveries: verify, record, dispatch.
//
// The webhook_events row is written before any business handler runs and is
// the idempotency gate. Once it exists the delivery is acknowledged, whatever
// the handler does; handler failures go to logs, metrics and Sentry.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/domain/users"
	"saas-billing/internal/infra/stripegw"
	"saas-billing/internal/metrics"
)

type Verifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type SubscriptionStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*billing.Subscription, error)
	FindActiveByUserID(ctx context.Context, userID string) (*billing.Subscription, error)
	Create(ctx context.Context, sub *billing.Subscription) (*billing.Subscription, error)
	UpdateByExternalID(ctx context.Context, externalID string, patch billing.SubscriptionPatch) (*billing.Subscription, error)
}

type PaymentStore interface {
	Append(ctx context.Context, p *billing.Payment) (bool, error)
	MarkRefunded(ctx context.Context, invoiceID string, amount int64, full bool, at time.Time) (*billing.Payment, error)
}

type EventLedger interface {
	Record(ctx context.Context, ev *billing.WebhookEvent) (bool, error)
	IncrementRetry(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

type UserStore interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*users.User, error)
	SetPlan(ctx context.Context, id string, plan plans.ID) (bool, error)
	ResetUsage(ctx context.Context, id string, nextReset time.Time) (bool, error)
}

// Outcome of one delivery, also the metrics label.
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
)

type Result struct {
	EventID   string
	EventType string
	Outcome   Outcome
}

type Processor struct {
	verifier      Verifier
	subscriptions SubscriptionStore
	payments      PaymentStore
	events        EventLedger
	users         UserStore
	logger        *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewProcessor(
	verifier Verifier,
	subscriptions SubscriptionStore,
	payments PaymentStore,
	events EventLedger,
	users UserStore,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Processor {
	return &Processor{
		verifier:      verifier,
		subscriptions: subscriptions,
		payments:      payments,
		events:        events,
		users:         users,
		logger:        logger.Named("webhook"),
		metrics:       m,
		now:           time.Now,
	}
}

// Process handles one delivery. It returns an error only when the delivery
// must not be acknowledged: a missing or invalid signature, or a ledger
// write that failed so the provider should retry.
func (p *Processor) Process(ctx context.Context, payload []byte, signature string) (Result, error) {
	event, err := p.verifier.ConstructEvent(payload, signature)
	if err != nil {
		p.metrics.RecordWebhook("", string(OutcomeRejected))
		p.logger.Warn("rejected webhook delivery", zap.Error(err))
		return Result{Outcome: OutcomeRejected}, err
	}

	meta := stripegw.MetaOf(event)
	res := Result{EventID: meta.ID, EventType: meta.Type}
	log := p.logger.With(zap.String("event_id", meta.ID), zap.String("event_type", meta.Type))

	recorded, err := p.events.Record(ctx, &billing.WebhookEvent{
		StripeEventID: meta.ID,
		Type:          meta.Type,
		Payload:       string(payload),
		ObjectID:      meta.ObjectID,
		ObjectType:    meta.ObjectType,
		Status:        billing.WebhookProcessed,
	})
	if err != nil {
		log.Error("failed to record webhook event", zap.Error(err))
		return res, billing.Internal("failed to record webhook event", err)
	}

	if !recorded {
		if err := p.events.IncrementRetry(ctx, meta.ID); err != nil {
			log.Warn("failed to count redelivery", zap.Error(err))
		}
		log.Info("duplicate webhook delivery skipped")
		res.Outcome = OutcomeDuplicate
		p.metrics.RecordWebhook(meta.Type, string(res.Outcome))
		return res, nil
	}

	handled, err := p.dispatch(ctx, event, log)
	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
		log.Error("webhook handler failed", zap.Error(err))
		if merr := p.events.MarkFailed(ctx, meta.ID, err); merr != nil {
			log.Error("failed to mark webhook event failed", zap.Error(merr))
		}
		report(ctx, meta, err)
	case handled:
		res.Outcome = OutcomeHandled
	default:
		res.Outcome = OutcomeIgnored
		log.Info("unhandled webhook event type acknowledged")
	}
	p.metrics.RecordWebhook(meta.Type, string(res.Outcome))
	return res, nil
}

// dispatch routes a verified event to its handler. handled is false for
// event types this service does not react to.
func (p *Processor) dispatch(ctx context.Context, raw stripe.Event, log *zap.Logger) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled, err = true, fmt.Errorf("handler panic: %v", r)
		}
	}()

	event, err := stripegw.Decode(raw)
	if err != nil {
		return true, err
	}

	switch e := event.(type) {
	case stripegw.SubscriptionCreated:
		return true, p.subscriptionCreated(ctx, e, log)
	case stripegw.SubscriptionUpdated:
		return true, p.subscriptionUpdated(ctx, e, log)
	case stripegw.SubscriptionDeleted:
		return true, p.subscriptionDeleted(ctx, e, log)
	case stripegw.InvoicePaymentSucceeded:
		return true, p.invoicePaymentSucceeded(ctx, e, log)
	case stripegw.InvoicePaymentFailed:
		return true, p.invoicePaymentFailed(ctx, e, log)
	case stripegw.ChargeRefunded:
		return true, p.chargeRefunded(ctx, e, log)
	case stripegw.Unknown:
		return false, nil
	}
	return false, nil
}

func report(ctx context.Context, meta stripegw.EventMeta, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("stripe_event_id", meta.ID)
		scope.SetTag("stripe_event_type", meta.Type)
		hub.CaptureException(err)
	})
}

// demote drops the user to free unless another live subscription remains.
func (p *Processor) demote(ctx context.Context, userID string, log *zap.Logger) error {
	other, err := p.subscriptions.FindActiveByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if other != nil {
		log.Info("user holds another live subscription, plan kept", zap.String("other_subscription_id", other.StripeSubscriptionID))
		return nil
	}
	return p.setPlan(ctx, userID, plans.Free, log)
}

func (p *Processor) setPlan(ctx context.Context, userID string, plan plans.ID, log *zap.Logger) error {
	ok, err := p.users.SetPlan(ctx, userID, plan)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("profile not found, denormalized plan not updated",
			zap.String("user_id", userID), zap.String("plan", string(plan)))
	}
	return nil
}
