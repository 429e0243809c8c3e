// Package subscription implements the user-facing lifecycle: checkout, plan
// change, cancellation and billing history.
//
// Every use case calls the provider first and writes local state only after
// the provider accepted the change. The webhook stream later delivers the same
// target state, so the local write is an early copy, not a second truth.
package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/domain/users"
	"saas-billing/internal/infra/stripegw"
	"saas-billing/internal/metrics"
)

type Gateway interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string, idempotencyKey string) (string, error)
	CreateCheckoutSession(ctx context.Context, in stripegw.CheckoutSessionInput) (*stripegw.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	UpdateSubscription(ctx context.Context, id string, change stripegw.SubscriptionChange) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string, immediately bool) (*stripe.Subscription, error)
}

type PriceResolver interface {
	ResolvePrice(ctx context.Context, plan plans.ID, cycle plans.BillingCycle) (plans.PriceRef, error)
}

type SubscriptionStore interface {
	FindActiveByUserID(ctx context.Context, userID string) (*billing.Subscription, error)
	Update(ctx context.Context, id uint, patch billing.SubscriptionPatch) (*billing.Subscription, error)
}

type PaymentStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]billing.Payment, error)
}

type UserStore interface {
	Get(ctx context.Context, id string) (*users.User, error)
	Ensure(ctx context.Context, id, email string) (*users.User, error)
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	SetPlan(ctx context.Context, id string, plan plans.ID) (bool, error)
}

type Service struct {
	gateway       Gateway
	prices        PriceResolver
	subscriptions SubscriptionStore
	payments      PaymentStore
	users         UserStore
	appURL        string
	logger        *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewService(
	gateway Gateway,
	prices PriceResolver,
	subscriptions SubscriptionStore,
	payments PaymentStore,
	users UserStore,
	appURL string,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		gateway:       gateway,
		prices:        prices,
		subscriptions: subscriptions,
		payments:      payments,
		users:         users,
		appURL:        strings.TrimRight(appURL, "/"),
		logger:        logger.Named("subscription"),
		metrics:       m,
		now:           time.Now,
	}
}

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID string
	Email  string
}

// Current returns the caller's live subscription.
func (s *Service) Current(ctx context.Context, userID string) (*billing.Subscription, error) {
	sub, err := s.subscriptions.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, billing.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, billing.NotFound("No active subscription")
	}
	return sub, nil
}

// Payments returns the caller's billing history, newest first.
func (s *Service) Payments(ctx context.Context, userID string, limit int) ([]billing.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, billing.Internal("failed to load payments", err)
	}
	return payments, nil
}

// PortalURL opens a Stripe customer portal session for the caller.
func (s *Service) PortalURL(ctx context.Context, userID, locale string) (url string, err error) {
	defer func() { s.metrics.RecordOperation("portal", err) }()

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", billing.Internal("failed to load profile", err)
	}
	if u == nil || !u.HasCustomer() {
		return "", billing.Conflict("No billing account yet. Subscribe to a plan first.")
	}

	url, err = s.gateway.CreatePortalSession(ctx, *u.StripeCustomerID, s.appURL+"/"+NormalizeLocale(locale)+"/dashboard/billing")
	if err != nil {
		return "", billing.Internal("failed to open billing portal", err)
	}
	return url, nil
}

// NormalizeLocale reduces a BCP 47 tag to its base language, "en" when unusable.
func NormalizeLocale(raw string) string {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil || tag == language.Und {
		return "en"
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "en"
	}
	return base.String()
}

func resolveError(err error) error {
	if errors.Is(err, plans.ErrPlanNotFound) || errors.Is(err, plans.ErrPriceNotFound) {
		return billing.InvalidRequest("The requested plan is not available for this billing cycle", err)
	}
	return billing.Internal("failed to resolve plan price", err)
}
