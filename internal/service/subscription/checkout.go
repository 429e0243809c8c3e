package subscription

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
)

type CheckoutRequest struct {
	Plan           plans.ID
	Cycle          plans.BillingCycle
	Locale         string
	IdempotencyKey string
}

type CheckoutResult struct {
	URL       string
	SessionID string
}

// CreateCheckout starts a Stripe checkout for a first subscription. The local
// row is created later by the subscription.created webhook.
func (s *Service) CreateCheckout(ctx context.Context, caller Caller, req CheckoutRequest) (res *CheckoutResult, err error) {
	defer func() { s.metrics.RecordOperation("checkout", err) }()
	log := s.logger.With(zap.String("user_id", caller.UserID), zap.String("plan", string(req.Plan)))

	price, err := s.prices.ResolvePrice(ctx, req.Plan, req.Cycle)
	if err != nil {
		return nil, resolveError(err)
	}

	active, err := s.subscriptions.FindActiveByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, billing.Internal("failed to load subscription", err)
	}
	if active != nil {
		return nil, billing.Conflict("You already have an active subscription. Change your plan instead.")
	}

	customerID, err := s.ensureCustomer(ctx, caller, log)
	if err != nil {
		return nil, err
	}

	locale := NormalizeLocale(req.Locale)
	md := stripegw.SubscriptionMetadata{UserID: caller.UserID, PlanID: req.Plan, Cycle: req.Cycle}
	session, err := s.gateway.CreateCheckoutSession(ctx, stripegw.CheckoutSessionInput{
		CustomerID:     customerID,
		PriceID:        price.PriceID,
		SuccessURL:     fmt.Sprintf("%s/%s/dashboard/billing?success=true&session_id={CHECKOUT_SESSION_ID}", s.appURL, locale),
		CancelURL:      fmt.Sprintf("%s/%s/pricing?canceled=true", s.appURL, locale),
		Metadata:       md.Map(),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, billing.Internal("failed to create checkout session", err)
	}
	if session == nil || session.URL == "" {
		return nil, billing.Internal("checkout session has no redirect URL", nil)
	}

	log.Info("checkout session created", zap.String("session_id", session.ID), zap.String("cycle", string(req.Cycle)))
	return &CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

// ensureCustomer returns the caller's Stripe customer, creating it on first
// checkout. The idempotency key makes a retried creation return the same customer.
func (s *Service) ensureCustomer(ctx context.Context, caller Caller, log *zap.Logger) (string, error) {
	u, err := s.users.Ensure(ctx, caller.UserID, caller.Email)
	if err != nil {
		return "", billing.Internal("failed to load profile", err)
	}
	if u.HasCustomer() {
		return *u.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, u.Email,
		map[string]string{stripegw.MetaUserID: u.ID}, "customer-"+u.ID)
	if err != nil {
		return "", billing.Internal("failed to create Stripe customer", err)
	}
	if err := s.users.SetStripeCustomerID(ctx, u.ID, customerID); err != nil {
		return "", billing.Internal("failed to store Stripe customer", err)
	}
	log.Info("stripe customer created", zap.String("customer_id", customerID))
	return customerID, nil
}
